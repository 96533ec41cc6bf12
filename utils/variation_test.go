package utils

import (
	"errors"
	"testing"

	"leadmailer/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRewriter struct {
	calls  int
	result *RewriteResult
	err    error
}

func (fr *fakeRewriter) Rewrite(subject, body, scopeKey string, account *models.SenderAccount) (*RewriteResult, error) {
	fr.calls++
	if fr.err != nil {
		return nil, fr.err
	}
	return fr.result, nil
}

func seedSender(t *testing.T, db *gorm.DB, isDefault bool) *models.SenderAccount {
	t.Helper()
	acct := models.SenderAccount{
		Name:       "Outreach",
		FromEmail:  "out@example.com",
		FromName:   "Outreach",
		SMTPHost:   "smtp.example.com",
		SMTPPort:   587,
		Active:     true,
		IsDefault:  isDefault,
		DailyLimit: 500,
	}
	require.NoError(t, db.Create(&acct).Error)
	return &acct
}

func TestContentSignatureChangesWithContent(t *testing.T) {
	sig := ContentSignature("Hello", "<p>Body</p>")
	assert.Equal(t, sig, ContentSignature("Hello", "<p>Body</p>"))
	assert.NotEqual(t, sig, ContentSignature("Hello!", "<p>Body</p>"))
	assert.NotEqual(t, sig, ContentSignature("Hello", "<p>Body!</p>"))
}

func TestDistinctiveness(t *testing.T) {
	assert.Equal(t, 0.0, Distinctiveness("quick brown fox", "quick brown fox"))
	assert.Equal(t, 1.0, Distinctiveness("quick brown fox", "lazy sleepy dog"))
	assert.InDelta(t, 0.5, Distinctiveness("quick brown", "quick dog"), 0.01)
	assert.Equal(t, 0.0, Distinctiveness("anything", ""))
}

func TestResolveDefaultIdentityGetsOriginal(t *testing.T) {
	db := openTestDB(t)
	fr := &fakeRewriter{}
	vc := NewVariationCache(db, fr)

	acct := seedSender(t, db, true)
	subject, body, err := vc.Resolve("transmission", 1, acct, "Hello", "<p>Body</p>")
	require.NoError(t, err)
	assert.Equal(t, "Hello", subject)
	assert.Equal(t, "<p>Body</p>", body)
	assert.Zero(t, fr.calls, "default identity never consults the rewriter")

	subject, _, err = vc.Resolve("transmission", 1, nil, "Hello", "<p>Body</p>")
	require.NoError(t, err)
	assert.Equal(t, "Hello", subject)
}

func TestResolveCachesVariant(t *testing.T) {
	db := openTestDB(t)
	fr := &fakeRewriter{result: &RewriteResult{
		Subject: "Hey there",
		Body:    "<p>Fresh body</p>",
		Applied: true,
	}}
	vc := NewVariationCache(db, fr)
	acct := seedSender(t, db, false)

	subject, body, err := vc.Resolve("transmission", 1, acct, "Hello", "<p>Body</p>")
	require.NoError(t, err)
	assert.Equal(t, "Hey there", subject)
	assert.Equal(t, "<p>Fresh body</p>", body)
	assert.Equal(t, 1, fr.calls)

	// Second resolve is a cache hit
	subject, body, err = vc.Resolve("transmission", 1, acct, "Hello", "<p>Body</p>")
	require.NoError(t, err)
	assert.Equal(t, "Hey there", subject)
	assert.Equal(t, "<p>Fresh body</p>", body)
	assert.Equal(t, 1, fr.calls)
}

func TestResolveContentEditInvalidatesCache(t *testing.T) {
	db := openTestDB(t)
	fr := &fakeRewriter{result: &RewriteResult{
		Subject: "Variant",
		Body:    "<p>Variant</p>",
		Applied: true,
	}}
	vc := NewVariationCache(db, fr)
	acct := seedSender(t, db, false)

	_, _, err := vc.Resolve("transmission", 1, acct, "Hello", "<p>Body</p>")
	require.NoError(t, err)

	// Editing the campaign content forces a fresh rewrite and prunes the
	// stale variant
	_, _, err = vc.Resolve("transmission", 1, acct, "Hello v2", "<p>Body</p>")
	require.NoError(t, err)
	assert.Equal(t, 2, fr.calls)

	var count int64
	require.NoError(t, db.Model(&models.ContentVariation{}).
		Where("scope = ? AND campaign_id = ? AND sender_account_id = ?", "transmission", 1, acct.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count, "stale variants are pruned")
}

func TestResolveRewriteFailureFallsBack(t *testing.T) {
	db := openTestDB(t)
	fr := &fakeRewriter{err: errors.New("service down")}
	vc := NewVariationCache(db, fr)
	acct := seedSender(t, db, false)

	subject, body, err := vc.Resolve("funnel", 2, acct, "Hello", "<p>Body</p>")
	require.NoError(t, err)
	assert.Equal(t, "Hello", subject)
	assert.Equal(t, "<p>Body</p>", body)
}

func TestResolveNotAppliedFallsBack(t *testing.T) {
	db := openTestDB(t)
	fr := &fakeRewriter{result: &RewriteResult{Applied: false, Reason: "content too short"}}
	vc := NewVariationCache(db, fr)
	acct := seedSender(t, db, false)

	subject, body, err := vc.Resolve("funnel", 2, acct, "Hello", "<p>Body</p>")
	require.NoError(t, err)
	assert.Equal(t, "Hello", subject)
	assert.Equal(t, "<p>Body</p>", body)

	var count int64
	require.NoError(t, db.Model(&models.ContentVariation{}).Count(&count).Error)
	assert.Zero(t, count, "declined rewrites are not cached")
}
