package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"leadmailer/models"
	"leadmailer/utils"

	"gorm.io/gorm"
)

// errNoCapacity aborts the burst loop when every sender account is at its
// daily cap; the transmission is deferred once and retried after the backoff
var errNoCapacity = errors.New("no sender capacity")

// burstCap bounds how many sends one tick may do for a transmission with no
// configured interval
const burstCap = 10

// rateLimitedBackoff is how far NextRunAt is pushed when the shared limiter
// refuses a send
const rateLimitedBackoff = time.Minute

// TransmissionWorker drains due one-shot transmissions on a short tick.
// Multiple processes may run it concurrently; the per-campaign lock keeps at
// most one of them driving a given transmission.
type TransmissionWorker struct {
	DB         *gorm.DB
	Mailer     utils.CampaignMailer
	Limiter    *utils.SendLimiter
	Locker     utils.Locker
	Variations *utils.VariationCache
	Logger     *log.Logger
	Interval   time.Duration
}

func NewTransmissionWorker(db *gorm.DB, mailer utils.CampaignMailer, limiter *utils.SendLimiter, locker utils.Locker, variations *utils.VariationCache, logger *log.Logger) *TransmissionWorker {
	return &TransmissionWorker{
		DB:         db,
		Mailer:     mailer,
		Limiter:    limiter,
		Locker:     locker,
		Variations: variations,
		Logger:     logger,
		Interval:   15 * time.Second,
	}
}

func (tw *TransmissionWorker) Start(ctx context.Context) {
	tw.Logger.Println("Transmission worker started")

	ticker := time.NewTicker(tw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tw.Logger.Println("Transmission worker shutting down...")
			return
		case <-ticker.C:
			tw.processDueTransmissions()
		}
	}
}

// processDueTransmissions is one tick: find due transmissions and drive each
// under its lock. Lock contention is not an error; the campaign is owned
// elsewhere this tick.
func (tw *TransmissionWorker) processDueTransmissions() {
	now := time.Now()

	var due []models.Transmission
	err := tw.DB.Where(
		"enabled = ? AND status IN ? AND (next_run_at IS NULL OR next_run_at <= ?)",
		true, []models.TransmissionStatus{models.StatusScheduled, models.StatusProcessing}, now,
	).Find(&due).Error
	if err != nil {
		tw.Logger.Printf("Error fetching due transmissions: %v", err)
		return
	}

	for i := range due {
		t := &due[i]

		unlock, ok, err := tw.Locker.TryLock("transmission", t.ID)
		if err != nil {
			utils.LogError("transmission_lock_failed", err, map[string]interface{}{
				"transmission_id": t.ID,
			})
			continue
		}
		if !ok {
			continue
		}

		func() {
			defer unlock()
			if err := tw.driveTransmission(t.ID); err != nil {
				tw.Logger.Printf("Error driving transmission %d: %v", t.ID, err)
				utils.LogError("transmission_tick_failed", err, map[string]interface{}{
					"transmission_id": t.ID,
				})
			}
		}()
	}
}

// driveTransmission re-reads state under the lock and drains the queue per
// the rate limiter: one send per tick when an interval is configured,
// otherwise a small burst.
func (tw *TransmissionWorker) driveTransmission(id uint) error {
	var t models.Transmission
	if err := tw.DB.First(&t, id).Error; err != nil {
		return err
	}

	// Re-check under the lock: another process may have paused or finished it
	if !t.Enabled || (t.Status != models.StatusScheduled && t.Status != models.StatusProcessing) {
		return nil
	}

	now := time.Now()
	if t.Status == models.StatusScheduled {
		if t.ScheduledAt != nil && t.ScheduledAt.After(now) {
			return tw.DB.Model(&t).Update("next_run_at", *t.ScheduledAt).Error
		}
		if err := tw.DB.Model(&t).Update("status", models.StatusProcessing).Error; err != nil {
			return err
		}
		t.Status = models.StatusProcessing
	}
	if t.StartedAt == nil {
		if err := tw.DB.Model(&t).Update("started_at", now).Error; err != nil {
			return err
		}
		t.StartedAt = &now
	}

	burst := burstCap
	if t.SendIntervalSeconds > 0 {
		burst = 1
	}

	for i := 0; i < burst; i++ {
		allowed, reason, err := tw.Limiter.CanSend(t.SendIntervalSeconds)
		if err != nil {
			return err
		}
		if !allowed {
			tw.Logger.Printf("Transmission %d deferred: %s", t.ID, reason)
			return tw.DB.Model(&t).Update("next_run_at", time.Now().Add(rateLimitedBackoff)).Error
		}

		var recipient models.TransmissionRecipient
		err = tw.DB.Where("transmission_id = ? AND status = ?", t.ID, models.RecipientPending).
			Order("position ASC").
			First(&recipient).Error
		if err == gorm.ErrRecordNotFound {
			return tw.completeTransmission(&t)
		}
		if err != nil {
			return err
		}

		if err := tw.sendToRecipient(&t, &recipient); err != nil {
			if err == errNoCapacity {
				tw.Logger.Printf("Transmission %d deferred: no sender capacity", t.ID)
				return tw.DB.Model(&t).Update("next_run_at", time.Now().Add(rateLimitedBackoff)).Error
			}
			return err
		}

		if t.SendIntervalSeconds > 0 {
			next := time.Now().Add(time.Duration(t.SendIntervalSeconds) * time.Second)
			return tw.DB.Model(&t).Update("next_run_at", next).Error
		}
	}

	// Burst exhausted with pending recipients left; pick up again next tick
	return tw.DB.Model(&t).Update("next_run_at", time.Now()).Error
}

// sendToRecipient attempts one send and records the outcome on both the
// recipient row and the transmission's aggregate counters. A provider failure
// marks the recipient failed and moves on; it never fails the campaign.
func (tw *TransmissionWorker) sendToRecipient(t *models.Transmission, recipient *models.TransmissionRecipient) error {
	var lead models.Lead
	if err := tw.DB.First(&lead, recipient.LeadID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			tw.Logger.Printf("Lead %d missing for transmission %d, marking recipient failed", recipient.LeadID, t.ID)
			return tw.recordFailure(t, recipient, "lead not found")
		}
		return err
	}

	if lead.Unsubscribed {
		return tw.recordFailure(t, recipient, "lead unsubscribed")
	}

	account, err := tw.Mailer.RotateSender()
	if err != nil {
		if err == utils.ErrNoSenderCapacity {
			return errNoCapacity
		}
		return err
	}

	subject, body, err := tw.Variations.Resolve("transmission", t.ID, account, t.Subject, t.Body)
	if err != nil {
		return err
	}

	subject = utils.RenderTemplate(subject, &lead)
	html := utils.RenderTemplate(body, &lead)
	if unsubURL, err := utils.UnsubscribeURL(lead.ID); err == nil {
		html = utils.WrapWithFooter(html, unsubURL)
	}

	now := time.Now()
	if _, err := tw.Mailer.SendAs(account, lead.Email, subject, html); err != nil {
		tw.Logger.Printf("Failed to send to lead %d: %v", lead.ID, err)
		return tw.recordFailure(t, recipient, err.Error())
	}

	if err := tw.DB.Model(recipient).Updates(map[string]interface{}{
		"status":  models.RecipientSent,
		"sent_at": now,
	}).Error; err != nil {
		return err
	}
	if err := tw.DB.Model(t).Updates(map[string]interface{}{
		"sent_count":   gorm.Expr("sent_count + ?", 1),
		"last_sent_at": now,
	}).Error; err != nil {
		return err
	}
	t.SentCount++

	if err := tw.Limiter.RecordSend(); err != nil {
		tw.Logger.Printf("Failed to record send on shared counter: %v", err)
	}
	return nil
}

func (tw *TransmissionWorker) recordFailure(t *models.Transmission, recipient *models.TransmissionRecipient, message string) error {
	if err := tw.DB.Model(recipient).Updates(map[string]interface{}{
		"status":        models.RecipientFailed,
		"error_message": message,
	}).Error; err != nil {
		return err
	}
	if err := tw.DB.Model(t).Updates(map[string]interface{}{
		"failed_count": gorm.Expr("failed_count + ?", 1),
		"last_error":   message,
	}).Error; err != nil {
		return err
	}
	t.FailedCount++
	return nil
}

func (tw *TransmissionWorker) completeTransmission(t *models.Transmission) error {
	now := time.Now()
	tw.Logger.Printf("Transmission %d completed (%d sent, %d failed)", t.ID, t.SentCount, t.FailedCount)
	utils.LogEvent("transmission_completed", map[string]interface{}{
		"transmission_id": t.ID,
		"sent_count":      t.SentCount,
		"failed_count":    t.FailedCount,
	})
	return tw.DB.Model(t).Updates(map[string]interface{}{
		"status":       models.StatusCompleted,
		"completed_at": now,
		"next_run_at":  nil,
	}).Error
}
