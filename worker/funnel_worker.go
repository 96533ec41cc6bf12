package worker

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sort"
	"time"

	"leadmailer/models"
	"leadmailer/utils"

	"gorm.io/gorm"
)

// errTickRateLimited stops processing the rest of the due set once the shared
// limiter closes; the remaining rows stay due and the next tick picks them up
var errTickRateLimited = errors.New("tick rate limited")

// FunnelWorker advances per-lead funnel progress rows that have come due.
// Each row moves one template forward per send; failures leave the row
// untouched so the same step retries next tick.
type FunnelWorker struct {
	DB         *gorm.DB
	Mailer     utils.CampaignMailer
	Limiter    *utils.SendLimiter
	Locker     utils.Locker
	Variations *utils.VariationCache
	Logger     *log.Logger
	Interval   time.Duration

	// TZMode selects the timezone-aware delay strategy over relative delays
	TZMode bool
}

func NewFunnelWorker(db *gorm.DB, mailer utils.CampaignMailer, limiter *utils.SendLimiter, locker utils.Locker, variations *utils.VariationCache, logger *log.Logger) *FunnelWorker {
	return &FunnelWorker{
		DB:         db,
		Mailer:     mailer,
		Limiter:    limiter,
		Locker:     locker,
		Variations: variations,
		Logger:     logger,
		Interval:   5 * time.Minute,
	}
}

func (fw *FunnelWorker) Start(ctx context.Context) {
	fw.Logger.Println("Funnel worker started")

	ticker := time.NewTicker(fw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fw.Logger.Println("Funnel worker shutting down...")
			return
		case <-ticker.C:
			fw.processDueProgress()
		}
	}
}

// dueRow carries a progress row with its funnel and the lead snapshot used
// for ordering; eligibility is re-checked against fresh reads under the lock
type dueRow struct {
	progress models.FunnelLeadProgress
	funnel   models.Funnel
	lead     *models.Lead
}

// processDueProgress is one tick: collect due rows across all active funnels,
// order them, and advance each under its funnel's lock
func (fw *FunnelWorker) processDueProgress() {
	rows, err := fw.collectDueRows()
	if err != nil {
		fw.Logger.Printf("Error fetching due funnel progress: %v", err)
		return
	}

	for i := range rows {
		row := &rows[i]

		unlock, ok, err := fw.Locker.TryLock("funnel", row.funnel.ID)
		if err != nil {
			utils.LogError("funnel_lock_failed", err, map[string]interface{}{
				"funnel_id": row.funnel.ID,
			})
			continue
		}
		if !ok {
			continue
		}

		var rowErr error
		func() {
			defer unlock()
			rowErr = fw.processRow(row)
		}()

		if rowErr == errTickRateLimited {
			fw.Logger.Println("Funnel tick rate limited, deferring remaining rows")
			return
		}
		if rowErr != nil {
			fw.Logger.Printf("Error processing funnel progress %d: %v", row.progress.ID, rowErr)
			utils.LogError("funnel_row_failed", rowErr, map[string]interface{}{
				"progress_id": row.progress.ID,
				"funnel_id":   row.funnel.ID,
				"lead_id":     row.progress.LeadID,
			})
		}
	}
}

// collectDueRows loads active progress rows whose NextSendAt has passed and
// whose funnel is active, ordered by NextSendAt with the per-funnel send
// order over lead creation time breaking ties
func (fw *FunnelWorker) collectDueRows() ([]dueRow, error) {
	now := time.Now()

	var progress []models.FunnelLeadProgress
	err := fw.DB.
		Joins("JOIN funnels ON funnels.id = funnel_lead_progress.funnel_id AND funnels.deleted_at IS NULL").
		Where("funnel_lead_progress.status = ?", models.ProgressActive).
		Where("funnel_lead_progress.next_send_at IS NOT NULL AND funnel_lead_progress.next_send_at <= ?", now).
		Where("funnels.active = ?", true).
		Order("funnel_lead_progress.next_send_at ASC").
		Find(&progress).Error
	if err != nil {
		return nil, err
	}
	if len(progress) == 0 {
		return nil, nil
	}

	funnels := make(map[uint]models.Funnel)
	leads := make(map[uint]*models.Lead)
	rows := make([]dueRow, 0, len(progress))
	for _, p := range progress {
		funnel, ok := funnels[p.FunnelID]
		if !ok {
			if err := fw.DB.First(&funnel, p.FunnelID).Error; err != nil {
				return nil, err
			}
			funnels[p.FunnelID] = funnel
		}

		lead, ok := leads[p.LeadID]
		if !ok {
			var l models.Lead
			if err := fw.DB.First(&l, p.LeadID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					leads[p.LeadID] = nil
				} else {
					return nil, err
				}
			} else {
				lead = &l
				leads[p.LeadID] = lead
			}
		}

		rows = append(rows, dueRow{progress: p, funnel: funnel, lead: lead})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.progress.NextSendAt.Equal(*b.progress.NextSendAt) {
			return a.progress.NextSendAt.Before(*b.progress.NextSendAt)
		}
		if a.funnel.ID != b.funnel.ID || a.lead == nil || b.lead == nil {
			return false
		}
		if a.funnel.SendOrder == models.OldestFirst {
			return a.lead.CreatedAt.Before(b.lead.CreatedAt)
		}
		return a.lead.CreatedAt.After(b.lead.CreatedAt)
	})

	return rows, nil
}

// processRow advances one lead by one funnel step. Missing leads and inactive
// templates are skipped without mutation; only an explicit unsubscribe
// cancels the row.
func (fw *FunnelWorker) processRow(row *dueRow) error {
	// Re-read under the lock; another process may have advanced it
	var progress models.FunnelLeadProgress
	if err := fw.DB.First(&progress, row.progress.ID).Error; err != nil {
		return err
	}
	if progress.Status != models.ProgressActive || progress.NextSendAt == nil || progress.NextSendAt.After(time.Now()) {
		return nil
	}

	// The lead snapshot from collection is stale by now; re-read it under
	// the lock so an unsubscribe landing between ticks is honored
	var lead models.Lead
	if err := fw.DB.First(&lead, progress.LeadID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			fw.Logger.Printf("Lead %d missing for funnel %d, skipping row", progress.LeadID, progress.FunnelID)
			return nil
		}
		return err
	}

	if lead.Unsubscribed {
		fw.Logger.Printf("Lead %d unsubscribed, cancelling funnel progress %d", lead.ID, progress.ID)
		return fw.DB.Model(&progress).Updates(map[string]interface{}{
			"status":           models.ProgressCancelled,
			"next_template_id": nil,
			"next_send_at":     nil,
		}).Error
	}

	if progress.NextTemplateID == nil {
		// Nothing left to send; close the row out
		return fw.DB.Model(&progress).Updates(map[string]interface{}{
			"status":       models.ProgressCompleted,
			"next_send_at": nil,
		}).Error
	}

	var tmpl models.FunnelTemplate
	if err := fw.DB.First(&tmpl, *progress.NextTemplateID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			fw.Logger.Printf("Template %d missing for funnel progress %d, skipping row", *progress.NextTemplateID, progress.ID)
			return nil
		}
		return err
	}
	if !tmpl.Active {
		// Deactivated mid-flight; a human re-activating it un-sticks the row
		fw.Logger.Printf("Template %d inactive, skipping funnel progress %d this tick", tmpl.ID, progress.ID)
		return nil
	}

	interval := 0
	if row.funnel.IntervalMaxSeconds > 0 {
		min := row.funnel.IntervalMinSeconds
		max := row.funnel.IntervalMaxSeconds
		if max < min {
			max = min
		}
		interval = min
		if max > min {
			interval = min + rand.Intn(max-min+1)
		}
	}

	allowed, reason, err := fw.Limiter.CanSend(interval)
	if err != nil {
		return err
	}
	if !allowed {
		fw.Logger.Printf("Funnel send gated: %s", reason)
		return errTickRateLimited
	}

	account, err := fw.Mailer.RotateSender()
	if err != nil {
		if err == utils.ErrNoSenderCapacity {
			return errTickRateLimited
		}
		return err
	}

	subject, body, err := fw.Variations.Resolve("funnel", row.funnel.ID, account, tmpl.Subject, tmpl.Body)
	if err != nil {
		return err
	}

	subject = utils.RenderTemplate(subject, &lead)
	html := utils.RenderTemplate(body, &lead)
	if unsubURL, err := utils.UnsubscribeURL(lead.ID); err == nil {
		html = utils.WrapWithFooter(html, unsubURL)
	}

	messageID, sendErr := fw.Mailer.SendAs(account, lead.Email, subject, html)

	history := models.FunnelSendHistory{
		FunnelID:   row.funnel.ID,
		TemplateID: tmpl.ID,
		LeadID:     lead.ID,
		Success:    sendErr == nil,
		MessageID:  messageID,
	}
	if sendErr != nil {
		history.ErrorMessage = utils.Pointer(sendErr.Error())
	}
	if err := fw.DB.Create(&history).Error; err != nil {
		return err
	}

	if sendErr != nil {
		// Leave NextTemplateID/NextSendAt untouched so this step retries
		fw.Logger.Printf("Failed to send funnel step to lead %d: %v", lead.ID, sendErr)
		return nil
	}

	if err := fw.Limiter.RecordSend(); err != nil {
		fw.Logger.Printf("Failed to record send on shared counter: %v", err)
	}

	return fw.advanceProgress(&progress, &tmpl, &lead)
}

// advanceProgress moves the cursor one step forward: the sent template
// becomes current and the next active template at a higher position is
// scheduled, or the row completes when there is none
func (fw *FunnelWorker) advanceProgress(progress *models.FunnelLeadProgress, sent *models.FunnelTemplate, lead *models.Lead) error {
	next, err := utils.NextActiveTemplate(fw.DB, progress.FunnelID, sent.Position)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"current_template_id": sent.ID,
	}
	if next == nil {
		updates["next_template_id"] = nil
		updates["next_send_at"] = nil
		updates["status"] = models.ProgressCompleted
	} else {
		nextAt := utils.NextSendTime(time.Now(), next.DelayValue, next.DelayUnit, next.SendTime, lead.Timezone, fw.TZMode)
		updates["next_template_id"] = next.ID
		updates["next_send_at"] = nextAt
	}

	return fw.DB.Model(progress).Updates(updates).Error
}
