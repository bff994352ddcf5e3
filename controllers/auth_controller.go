package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/utils"
)

type AuthController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	JWTSecret string
}

func NewAuthController(db *gorm.DB, logger *log.Logger, jwtSecret string) *AuthController {
	return &AuthController{
		DB:        db,
		Logger:    logger,
		JWTSecret: jwtSecret,
	}
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required"` // username or email
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"`
	User        *models.User `json:"user"`
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	login := strings.TrimSpace(req.Login)
	var user models.User
	if err := ac.DB.Where("username = ? OR email = ?", login, strings.ToLower(login)).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid username or password",
		})
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.LogEvent("login_failed", map[string]interface{}{
			"user_id": user.ID,
			"ip":      c.IP(),
		})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid username or password",
		})
	}

	if !user.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Account is not active",
		})
	}

	accessToken, err := utils.GenerateJWTToken(&user, ac.JWTSecret)
	if err != nil {
		ac.Logger.Printf("Failed to sign token for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(AuthResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(utils.AccessTokenTTL.Seconds()),
		User:        &user,
	})
}

func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	return c.JSON(utils.SuccessResponse(user))
}
