package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
	"github.com/zenpa1/budget-tracker/internal/testutil"
	"github.com/zenpa1/budget-tracker/internal/views"
)

var trackingCodePattern = regexp.MustCompile(`^FB-\d{4}-\d{3,}$`)

func feedbackInput() AddFeedbackInput {
	return AddFeedbackInput{
		Category:    models.FeedbackCategoryToxicLeadership,
		Department:  "Engineering",
		Severity:    models.FeedbackSeverityHigh,
		Subject:     "Team meetings",
		Description: "Repeated public criticism",
	}
}

func TestTrackingCode(t *testing.T) {
	tests := []struct {
		year, seq int
		want      string
	}{
		{2026, 1, "FB-2026-001"},
		{2026, 42, "FB-2026-042"},
		{2026, 999, "FB-2026-999"},
		{2026, 1000, "FB-2026-1000"},
	}
	for _, tt := range tests {
		if got := TrackingCode(tt.year, tt.seq); got != tt.want {
			t.Errorf("TrackingCode(%d, %d) = %s, want %s", tt.year, tt.seq, got, tt.want)
		}
	}
}

func TestAddFeedbackReport(t *testing.T) {
	t.Run("sequential codes and HR alert", func(t *testing.T) {
		e := newEnv(t)
		svc := e.feedback()

		first, err := svc.AddFeedbackReport(context.Background(), feedbackInput())
		testutil.AssertNoError(t, err)
		second, err := svc.AddFeedbackReport(context.Background(), feedbackInput())
		testutil.AssertNoError(t, err)

		if first != "FB-2026-001" || second != "FB-2026-002" {
			t.Errorf("expected FB-2026-001 and FB-2026-002, got %s and %s", first, second)
		}

		snap := e.cache.Snapshot()
		if len(snap.FeedbackReports) != 2 || len(snap.Notifications) != 2 {
			t.Fatalf("expected 2 reports and 2 notifications, got %d and %d", len(snap.FeedbackReports), len(snap.Notifications))
		}
		report := snap.FeedbackReports[0]
		if report.Status != models.FeedbackStatusNew || !report.IsAnonymous {
			t.Errorf("unexpected report %+v", report)
		}
		n := snap.Notifications[0]
		if n.Title != "New Anonymous Report" || n.Message != "A new toxic leadership report has been submitted" {
			t.Errorf("unexpected notification %+v", n)
		}
		if n.Audience != models.RoleHRAdmin || n.BudgetID != nil {
			t.Errorf("notification should target HR without a budget: %+v", n)
		}
	})

	t.Run("skips codes already taken", func(t *testing.T) {
		e := newEnv(t)
		// One report exists, but it already holds the code the count points at.
		testutil.CreateTestFeedbackReport(t, e.db, "FB-2026-002")
		e.sync(t)

		code, err := e.feedback().AddFeedbackReport(context.Background(), feedbackInput())
		testutil.AssertNoError(t, err)
		if code != "FB-2026-003" {
			t.Errorf("expected FB-2026-003, got %s", code)
		}
	})

	t.Run("retries on duplicate from another instance", func(t *testing.T) {
		e := newEnv(t)
		// Stored by someone else and not yet seen by this cache.
		testutil.CreateTestFeedbackReport(t, e.db, "FB-2026-001")

		code, err := e.feedback().AddFeedbackReport(context.Background(), feedbackInput())
		testutil.AssertNoError(t, err)
		if code != "FB-2026-002" {
			t.Errorf("expected FB-2026-002, got %s", code)
		}
	})

	t.Run("unique under concurrency", func(t *testing.T) {
		e := newEnv(t)
		svc := e.feedback()

		const n = 15
		codes := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				code, err := svc.AddFeedbackReport(context.Background(), feedbackInput())
				if err != nil {
					t.Errorf("AddFeedbackReport() error = %v", err)
					return
				}
				codes <- code
			}()
		}
		wg.Wait()
		close(codes)

		seen := make(map[string]bool)
		for code := range codes {
			if !trackingCodePattern.MatchString(code) {
				t.Errorf("code %q has the wrong format", code)
			}
			if seen[code] {
				t.Errorf("duplicate code %s", code)
			}
			seen[code] = true
		}
		if len(seen) != n {
			t.Errorf("expected %d codes, got %d", n, len(seen))
		}
	})

	t.Run("validation", func(t *testing.T) {
		e := newEnv(t)
		svc := e.feedback()

		mutations := map[string]func(*AddFeedbackInput){
			"unknown category": func(in *AddFeedbackInput) { in.Category = "gossip" },
			"blank department": func(in *AddFeedbackInput) { in.Department = "" },
			"unknown severity": func(in *AddFeedbackInput) { in.Severity = "extreme" },
			"blank subject":    func(in *AddFeedbackInput) { in.Subject = " " },
			"blank desc":       func(in *AddFeedbackInput) { in.Description = "" },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				in := feedbackInput()
				mutate(&in)
				_, err := svc.AddFeedbackReport(context.Background(), in)
				testutil.AssertAppError(t, err, "VALIDATION_ERROR")
			})
		}
	})

	t.Run("logs nothing that identifies the report", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		e := newEnv(t)
		code, err := e.feedback().AddFeedbackReport(context.Background(), feedbackInput())
		testutil.AssertNoError(t, err)
		report, _ := e.cache.FindTrackingCode(code)

		if logs.Len() == 0 {
			t.Fatal("expected the submission to be logged")
		}
		for _, entry := range logs.All() {
			for key, value := range entry.ContextMap() {
				if key != "category" {
					t.Errorf("unexpected log field %q", key)
				}
				text := fmt.Sprint(value)
				if strings.Contains(text, code) || strings.Contains(text, report.ID) {
					t.Errorf("log field %q leaks an identifier: %s", key, text)
				}
			}
			if strings.Contains(entry.Message, code) || strings.Contains(entry.Message, report.ID) {
				t.Errorf("log message leaks an identifier: %s", entry.Message)
			}
		}
	})
}

func TestAddFeedbackReport_StoreFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCause string
		wantIs    error
	}{
		{"driver error", errors.New("write FB-2026-001 failed: connection reset"), "store: *errors.errorString", nil},
		{"duplicate every time", fmt.Errorf("%w: tracking_code FB-2026-001", store.ErrDuplicate), store.ErrDuplicate.Error(), store.ErrDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			restore := logger.Replace(zap.New(core))
			defer restore()

			e := newEnv(t)
			e.sync(t)
			svc := &feedbackService{store: failingStore{Client: e.store, err: tt.err}, cache: e.cache, locker: e.locker, now: fixedClock}

			_, err := svc.AddFeedbackReport(context.Background(), feedbackInput())
			testutil.AssertAppError(t, err, "STORE_ERROR")
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected error to wrap %v, got %v", tt.wantIs, err)
			}

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected one error log, got %d", len(entries))
			}
			cause := fmt.Sprint(entries[0].ContextMap()["cause"])
			if cause != tt.wantCause {
				t.Errorf("cause = %q, want %q", cause, tt.wantCause)
			}
			for key, value := range entries[0].ContextMap() {
				if strings.Contains(fmt.Sprint(value), "FB-2026") {
					t.Errorf("log field %q leaks the tracking code: %v", key, value)
				}
			}
			var appErr interface{ Unwrap() error }
			if errors.As(err, &appErr) && strings.Contains(fmt.Sprint(appErr.Unwrap()), "FB-2026") {
				t.Errorf("wrapped cause leaks the tracking code: %v", appErr.Unwrap())
			}
		})
	}
}

func TestUpdateFeedbackStatus(t *testing.T) {
	hr := testutil.NewUser(models.RoleHRAdmin)

	setup := func(t *testing.T) (*env, *models.FeedbackReport) {
		e := newEnv(t)
		report := testutil.CreateTestFeedbackReport(t, e.db, "FB-2026-001")
		e.sync(t)
		return e, report
	}

	t.Run("hr admin updates status and notes", func(t *testing.T) {
		e, report := setup(t)
		svc := e.feedback()

		updated, err := svc.UpdateFeedbackStatus(context.Background(), hr, report.ID, UpdateFeedbackInput{
			Status:     models.FeedbackStatusInvestigating,
			HRNotes:    ptr("Interviewed the team"),
			AssignedTo: ptr("Michael Torres"),
		})
		testutil.AssertNoError(t, err)
		if updated.Status != models.FeedbackStatusInvestigating || *updated.HRNotes != "Interviewed the team" {
			t.Errorf("unexpected report %+v", updated)
		}
		if updated.Subject != report.Subject || updated.Category != report.Category {
			t.Error("report content must not change")
		}

		// An empty note keeps the previous one.
		updated, err = svc.UpdateFeedbackStatus(context.Background(), hr, report.ID, UpdateFeedbackInput{
			Status:  models.FeedbackStatusResolved,
			HRNotes: ptr(""),
		})
		testutil.AssertNoError(t, err)
		if updated.HRNotes == nil || *updated.HRNotes != "Interviewed the team" {
			t.Errorf("expected notes kept, got %v", updated.HRNotes)
		}
		if updated.Version != 3 {
			t.Errorf("expected version 3, got %d", updated.Version)
		}
	})

	t.Run("other roles are rejected", func(t *testing.T) {
		e, report := setup(t)
		for _, role := range []models.Role{models.RoleFinanceHead, models.RoleEmployee} {
			_, err := e.feedback().UpdateFeedbackStatus(context.Background(), testutil.NewUser(role), report.ID,
				UpdateFeedbackInput{Status: models.FeedbackStatusClosed})
			testutil.AssertAppError(t, err, "AUTHORIZATION_ERROR")
		}
	})

	t.Run("invalid status and missing report", func(t *testing.T) {
		e, report := setup(t)
		_, err := e.feedback().UpdateFeedbackStatus(context.Background(), hr, report.ID, UpdateFeedbackInput{Status: "done"})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")

		_, err = e.feedback().UpdateFeedbackStatus(context.Background(), hr, "missing", UpdateFeedbackInput{Status: models.FeedbackStatusClosed})
		testutil.AssertAppError(t, err, "FEEDBACK_NOT_FOUND")
	})

	t.Run("stale cache retries against the store", func(t *testing.T) {
		e, report := setup(t)
		e.db.Model(&models.FeedbackReport{}).Where("id = ?", report.ID).
			Updates(map[string]interface{}{"status": models.FeedbackStatusUnderReview, "version": 2})

		updated, err := e.feedback().UpdateFeedbackStatus(context.Background(), hr, report.ID,
			UpdateFeedbackInput{Status: models.FeedbackStatusClosed})
		testutil.AssertNoError(t, err)
		if updated.Version != 3 || updated.Status != models.FeedbackStatusClosed {
			t.Errorf("unexpected report %+v", updated)
		}
	})
}

func TestLookupByTrackingCode(t *testing.T) {
	e := newEnv(t)
	report := testutil.CreateTestFeedbackReport(t, e.db, "FB-2026-007")
	notes := "private"
	e.db.Model(report).Update("hr_notes", notes)
	svc := e.feedback()

	// Not cached yet: served from the store.
	view, err := svc.LookupByTrackingCode(context.Background(), "fb-2026-007")
	testutil.AssertNoError(t, err)
	if view.TrackingCode != "FB-2026-007" || view.Status != models.FeedbackStatusNew {
		t.Errorf("unexpected view %+v", view)
	}

	e.sync(t)
	view, err = svc.LookupByTrackingCode(context.Background(), "  FB-2026-007 ")
	testutil.AssertNoError(t, err)
	if view.Subject != report.Subject {
		t.Errorf("unexpected view %+v", view)
	}

	_, err = svc.LookupByTrackingCode(context.Background(), "FB-2026-999")
	testutil.AssertAppError(t, err, "FEEDBACK_NOT_FOUND")

	_, err = svc.LookupByTrackingCode(context.Background(), "")
	testutil.AssertAppError(t, err, "VALIDATION_ERROR")
}

func TestListFeedback(t *testing.T) {
	e := newEnv(t)
	testutil.CreateTestFeedbackReport(t, e.db, "FB-2026-001")
	closed := testutil.CreateTestFeedbackReport(t, e.db, "FB-2026-002")
	e.db.Model(closed).Update("status", models.FeedbackStatusClosed)
	e.sync(t)
	svc := e.feedback()
	hr := testutil.NewUser(models.RoleHRAdmin)

	all, err := svc.ListFeedback(hr, FeedbackFilter{})
	testutil.AssertNoError(t, err)
	if len(all) != 2 {
		t.Errorf("expected 2 reports, got %d", len(all))
	}

	resolved, err := svc.ListFeedback(hr, FeedbackFilter{Bucket: views.BucketResolved})
	testutil.AssertNoError(t, err)
	if len(resolved) != 1 || resolved[0].ID != closed.ID {
		t.Errorf("unexpected resolved reports %+v", resolved)
	}

	status := models.FeedbackStatusNew
	fresh, err := svc.ListFeedback(hr, FeedbackFilter{Status: &status, Bucket: views.BucketResolved})
	testutil.AssertNoError(t, err)
	if len(fresh) != 1 {
		t.Errorf("status filter should win over bucket, got %d", len(fresh))
	}

	_, err = svc.ListFeedback(hr, FeedbackFilter{Bucket: "archived"})
	testutil.AssertAppError(t, err, "VALIDATION_ERROR")

	_, err = svc.ListFeedback(testutil.NewUser(models.RoleFinanceHead), FeedbackFilter{})
	testutil.AssertAppError(t, err, "AUTHORIZATION_ERROR")
}
