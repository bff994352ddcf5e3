package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"newbusiness/testutil"
)

func TestSubstringResolver(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	acme := testutil.Advertiser(t, db, "Acme Corp")
	acmeBaltic := testutil.Advertiser(t, db, "Acme Corp Baltic")
	telia := testutil.Advertiser(t, db, "Telia")

	r := NewSubstringResolver()

	tests := []struct {
		name  string
		input string
		want  uint
	}{
		{"exact beats substring", "Acme Corp Baltic", acmeBaltic.ID},
		{"case-insensitive containment", "acme", acme.ID},
		{"stored name inside input", "Telia Lietuva AB", telia.ID},
		{"surrounding whitespace", "  Telia ", telia.ID},
		{"no match", "Maxima", 0},
		{"blank", "   ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv, err := r.Resolve(ctx, db, tt.input)
			require.NoError(t, err)
			if tt.want == 0 {
				assert.Nil(t, adv)
				return
			}
			require.NotNil(t, adv)
			assert.Equal(t, tt.want, adv.ID)
		})
	}
}

func TestExactResolver(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	acme := testutil.Advertiser(t, db, "Acme Corp")

	var r Resolver = ExactResolver{}

	adv, err := r.Resolve(ctx, db, "Acme Corp")
	require.NoError(t, err)
	require.NotNil(t, adv)
	assert.Equal(t, acme.ID, adv.ID)

	adv, err = r.Resolve(ctx, db, "acme corp")
	require.NoError(t, err)
	assert.Nil(t, adv)
}

func TestSubstringResolverFoldsNonASCII(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	svyturys := testutil.Advertiser(t, db, "Švyturys Utenos alus")
	zalgiris := testutil.Advertiser(t, db, "ŽALGIRIS")

	r := NewSubstringResolver()
	for input, want := range map[string]uint{
		"Švyturys":                  svyturys.ID,
		"švyturys":                  svyturys.ID,
		"ŠVYTURYS UTENOS":           svyturys.ID,
		"Švyturys Utenos alus UAB":  svyturys.ID,
		"žalgiris":                  zalgiris.ID,
		"Krepšinio klubas Žalgiris": zalgiris.ID,
	} {
		adv, err := r.Resolve(ctx, db, input)
		require.NoError(t, err, input)
		require.NotNil(t, adv, input)
		assert.Equal(t, want, adv.ID, input)
	}
}
