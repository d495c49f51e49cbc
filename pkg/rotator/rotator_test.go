package rotator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/test/util"
)

func seedCredentials(t *testing.T, client *ent.Client, n int) []*ent.Credential {
	t.Helper()
	ctx := context.Background()
	creds := make([]*ent.Credential, 0, n)
	for i := 0; i < n; i++ {
		c, err := client.Credential.Create().
			SetName("cred").
			SetToken("token").
			Save(ctx)
		require.NoError(t, err)
		creds = append(creds, c)
	}
	return creds
}

func TestAcquireFairDistribution(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()
	seedCredentials(t, client, 3)

	r := New(client, 0)

	const total = 30
	usage := make(map[int]int)
	for i := 0; i < total; i++ {
		lease, err := r.Acquire(ctx)
		require.NoError(t, err)
		usage[lease.Cred.ID]++
		require.NoError(t, r.Report(ctx, lease, Success()))
	}

	// Spread must stay within ceil(N/k)+1.
	for id, count := range usage {
		assert.LessOrEqual(t, count, total/3+1, "credential %d over-used", id)
	}
	assert.Len(t, usage, 3, "all credentials should be used")
}

func TestAcquireSkipsRateLimited(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()
	seedCredentials(t, client, 2)

	r := New(client, 0)

	lease, err := r.Acquire(ctx)
	require.NoError(t, err)
	limitedID := lease.Cred.ID
	require.NoError(t, r.Report(ctx, lease, RateLimited(30*time.Second)))

	// Rate-limited credential must not come back before its cooldown.
	for i := 0; i < 4; i++ {
		lease, err := r.Acquire(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, limitedID, lease.Cred.ID)
		require.NoError(t, r.Report(ctx, lease, Success()))
	}

	until, found, err := r.NextEligibleAt(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), until, 5*time.Second)

	cred, err := client.Credential.Get(ctx, limitedID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cred.RateLimitHits)
}

func TestAcquireHonorsExpiredCooldown(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()
	creds := seedCredentials(t, client, 1)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, client.Credential.UpdateOneID(creds[0].ID).
		SetRateLimitedUntil(past).
		Exec(ctx))

	r := New(client, 0)
	lease, err := r.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds[0].ID, lease.Cred.ID)
	require.NoError(t, r.Report(ctx, lease, Success()))
}

func TestFatalErrorDeactivatesCredential(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()
	seedCredentials(t, client, 1)

	r := New(client, 0)
	lease, err := r.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Report(ctx, lease, FatalError("invalid token")))

	_, err = r.Acquire(ctx)
	assert.ErrorIs(t, err, ErrNoCredentialAvailable)

	creds, err := client.Credential.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.False(t, creds[0].Active)
	require.NotNil(t, creds[0].LastErrorMessage)
	assert.Equal(t, "invalid token", *creds[0].LastErrorMessage)
}

func TestAcquireWithEmptyPool(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)

	r := New(client, 0)
	_, err := r.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentialAvailable)
}

func TestLeasedCredentialNotHandedOutTwice(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()
	seedCredentials(t, client, 2)

	r := New(client, 0)

	first, err := r.Acquire(ctx)
	require.NoError(t, err)
	second, err := r.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Cred.ID, second.Cred.ID)

	_, err = r.Acquire(ctx)
	assert.ErrorIs(t, err, ErrNoCredentialAvailable)

	require.NoError(t, r.Report(ctx, first, Success()))
	third, err := r.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Cred.ID, third.Cred.ID)
	require.NoError(t, r.Report(ctx, second, Success()))
	require.NoError(t, r.Report(ctx, third, Success()))
}

func TestReportTwiceFails(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()
	seedCredentials(t, client, 1)

	r := New(client, 0)
	lease, err := r.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Report(ctx, lease, Success()))
	assert.Error(t, r.Report(ctx, lease, Success()))
}

func TestListUsable(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()
	creds := seedCredentials(t, client, 3)

	require.NoError(t, client.Credential.UpdateOneID(creds[2].ID).
		SetRateLimitedUntil(time.Now().Add(time.Hour)).
		Exec(ctx))

	r := New(client, 0)
	usable, err := r.ListUsable(ctx)
	require.NoError(t, err)
	assert.Len(t, usable, 2)
}
