package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"leadmailer/models"

	"github.com/go-resty/resty/v2"
	"gorm.io/gorm"
)

// ContentSignature fingerprints a subject/body pair. Cached variations are
// keyed by it, so editing the campaign content invalidates every variant.
func ContentSignature(subject, body string) string {
	sum := sha256.Sum256([]byte(subject + "\n" + body))
	return hex.EncodeToString(sum[:])
}

// RewriteResult is what the AI collaborator hands back. Applied=false means
// the provider declined to rewrite (Reason says why) and the original content
// should be used as-is.
type RewriteResult struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason"`
}

// Rewriter produces an account-specific variant of campaign content
type Rewriter interface {
	Rewrite(subject, body, scopeKey string, account *models.SenderAccount) (*RewriteResult, error)
}

// HTTPRewriter calls the external rewrite service
type HTTPRewriter struct {
	client *resty.Client
	url    string
}

func NewHTTPRewriter(url, apiKey string) *HTTPRewriter {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &HTTPRewriter{client: client, url: url}
}

func (hr *HTTPRewriter) Rewrite(subject, body, scopeKey string, account *models.SenderAccount) (*RewriteResult, error) {
	if hr.url == "" {
		return &RewriteResult{Applied: false, Reason: "rewrite endpoint not configured"}, nil
	}

	var result RewriteResult
	resp, err := hr.client.R().
		SetBody(map[string]interface{}{
			"subject":    subject,
			"body":       body,
			"scope_key":  scopeKey,
			"identity":   account.FromEmail,
			"from_name":  account.FromName,
			"account_id": account.ID,
		}).
		SetResult(&result).
		Post(hr.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rewrite service returned %s", resp.Status())
	}
	return &result, nil
}

// Distinctiveness scores how far a variant drifted from the default content:
// the fraction of its words not shared with the original. Used to pick among
// stored variants so accounts don't converge on near-duplicates.
func Distinctiveness(original, variant string) float64 {
	origWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(original)) {
		origWords[w] = true
	}

	words := strings.Fields(strings.ToLower(variant))
	if len(words) == 0 {
		return 0
	}

	changed := 0
	for _, w := range words {
		if !origWords[w] {
			changed++
		}
	}
	return float64(changed) / float64(len(words))
}

// VariationCache memoizes rewritten subject/body variants per sending
// identity
type VariationCache struct {
	DB       *gorm.DB
	Rewriter Rewriter
}

func NewVariationCache(db *gorm.DB, rewriter Rewriter) *VariationCache {
	return &VariationCache{DB: db, Rewriter: rewriter}
}

// Resolve returns the subject/body this account should send for the given
// campaign content. The default identity always sends the original. Other
// identities reuse a cached variant matching the current signature, otherwise
// the rewrite collaborator produces one; stale variants (signature mismatch)
// are pruned along the way. Any rewrite failure falls back to the original
// content.
func (vc *VariationCache) Resolve(scope string, campaignID uint, account *models.SenderAccount, subject, body string) (string, string, error) {
	if account == nil || account.IsDefault {
		return subject, body, nil
	}

	sig := ContentSignature(subject, body)

	var cached models.ContentVariation
	err := vc.DB.Where(
		"scope = ? AND campaign_id = ? AND sender_account_id = ? AND signature = ?",
		scope, campaignID, account.ID, sig,
	).Order("distinctiveness DESC").First(&cached).Error
	if err == nil {
		return cached.Subject, cached.Body, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", "", err
	}

	// Content was edited since the last rewrite: drop the stale variants
	if err := vc.DB.Unscoped().Where(
		"scope = ? AND campaign_id = ? AND sender_account_id = ? AND signature <> ?",
		scope, campaignID, account.ID, sig,
	).Delete(&models.ContentVariation{}).Error; err != nil {
		return "", "", err
	}

	scopeKey := fmt.Sprintf("%s:%d", scope, campaignID)
	result, err := vc.Rewriter.Rewrite(subject, body, scopeKey, account)
	if err != nil {
		LogError("variation_rewrite_failed", err, map[string]interface{}{
			"scope":       scope,
			"campaign_id": campaignID,
			"account_id":  account.ID,
		})
		return subject, body, nil
	}
	if !result.Applied || result.Subject == "" || result.Body == "" {
		return subject, body, nil
	}

	variation := models.ContentVariation{
		Scope:           scope,
		CampaignID:      campaignID,
		SenderAccountID: account.ID,
		Signature:       sig,
		Subject:         result.Subject,
		Body:            result.Body,
		Distinctiveness: Distinctiveness(subject+" "+body, result.Subject+" "+result.Body),
	}
	if err := vc.DB.Create(&variation).Error; err != nil {
		return "", "", err
	}

	return result.Subject, result.Body, nil
}
