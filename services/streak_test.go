package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gamification-engine/models"
	"gamification-engine/testutil"
)

func newTrackerAt(t *testing.T, day time.Time) (*StreakTracker, *testutil.FixedClock) {
	t.Helper()
	clock := &testutil.FixedClock{T: day}
	tracker := NewStreakTracker(testutil.DB(t), testutil.Logger(t))
	tracker.now = clock.Now
	return tracker, clock
}

func TestRecordActivityStateMachine(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	tracker, clock := newTrackerAt(t, day)

	st, err := tracker.RecordActivity(ctx, "u1", "LESSON_COMPLETED")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if st.Outcome != StreakStarted || st.Streak.CurrentStreak != 1 || st.Streak.LongestStreak != 1 {
		t.Fatalf("first activity: %+v", st)
	}

	clock.Advance(5 * time.Hour)
	st, err = tracker.RecordActivity(ctx, "u1", "LESSON_COMPLETED")
	if err != nil {
		t.Fatalf("RecordActivity same day: %v", err)
	}
	if st.Outcome != StreakUnchanged || st.Streak.CurrentStreak != 1 {
		t.Fatalf("same day: %+v", st)
	}

	clock.T = day.AddDate(0, 0, 1)
	st, err = tracker.RecordActivity(ctx, "u1", "LESSON_COMPLETED")
	if err != nil {
		t.Fatalf("RecordActivity next day: %v", err)
	}
	if st.Outcome != StreakExtended || st.Streak.CurrentStreak != 2 || st.Streak.LongestStreak != 2 {
		t.Fatalf("next day: %+v", st)
	}

	clock.T = day.AddDate(0, 0, 4)
	st, err = tracker.RecordActivity(ctx, "u1", "LESSON_COMPLETED")
	if err != nil {
		t.Fatalf("RecordActivity after gap: %v", err)
	}
	if st.Outcome != StreakReset || st.Streak.CurrentStreak != 1 || st.Streak.LongestStreak != 2 {
		t.Fatalf("after gap: %+v", st)
	}

	streaks, err := tracker.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if len(streaks) != 1 || streaks[0].CurrentStreak != 1 || streaks[0].LongestStreak != 2 {
		t.Fatalf("stored streaks: %+v", streaks)
	}
	if !streaks[0].LastActivityDate.Equal(CalendarDay(clock.T)) {
		t.Fatalf("LastActivityDate = %v, want %v", streaks[0].LastActivityDate, CalendarDay(clock.T))
	}
}

func TestRecordActivityAcrossMidnightUTC(t *testing.T) {
	ctx := context.Background()
	tracker, clock := newTrackerAt(t, time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC))

	if _, err := tracker.RecordActivity(ctx, "u1", "LOGIN"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	clock.Advance(2 * time.Minute)
	st, err := tracker.RecordActivity(ctx, "u1", "LOGIN")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if st.Streak.CurrentStreak != 2 {
		t.Fatalf("CurrentStreak = %d, want 2", st.Streak.CurrentStreak)
	}
}

func TestRecordActivityStreakTypesAreIndependent(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTrackerAt(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	for _, typ := range []string{"LOGIN", "LESSON_COMPLETED"} {
		st, err := tracker.RecordActivity(ctx, "u1", typ)
		if err != nil {
			t.Fatalf("RecordActivity(%s): %v", typ, err)
		}
		if st.Outcome != StreakStarted {
			t.Fatalf("%s outcome = %s", typ, st.Outcome)
		}
	}
}

func TestRecordActivityValidation(t *testing.T) {
	tracker, _ := newTrackerAt(t, time.Now())
	if _, err := tracker.RecordActivity(context.Background(), "", "LOGIN"); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if _, err := tracker.RecordActivity(context.Background(), "u1", " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestDeactivateLapsedOnlyTouchesOldStreaks(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, clock := newTrackerAt(t, day)

	if _, err := tracker.RecordActivity(ctx, "lapsed", "LOGIN"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	clock.T = day.AddDate(0, 0, 2)
	if _, err := tracker.RecordActivity(ctx, "yesterday", "LOGIN"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	clock.T = day.AddDate(0, 0, 3)
	if _, err := tracker.RecordActivity(ctx, "today", "LOGIN"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	n, err := tracker.DeactivateLapsed(ctx)
	if err != nil {
		t.Fatalf("DeactivateLapsed: %v", err)
	}
	if n != 1 {
		t.Fatalf("deactivated %d streaks, want 1", n)
	}

	var rows []models.UserStreak
	tracker.DB.Order("user_id").Find(&rows)
	for _, r := range rows {
		wantActive := r.UserID != "lapsed"
		if r.IsActive != wantActive {
			t.Fatalf("%s IsActive = %v, want %v", r.UserID, r.IsActive, wantActive)
		}
		if r.UserID == "lapsed" && (r.CurrentStreak != 0 || r.LongestStreak != 1) {
			t.Fatalf("lapsed streak: %+v", r)
		}
	}

	// The lapsed user comes back: a fresh streak of one.
	st, err := tracker.RecordActivity(ctx, "lapsed", "LOGIN")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if st.Outcome != StreakReset || st.Streak.CurrentStreak != 1 || !st.Streak.IsActive {
		t.Fatalf("returning user: %+v", st)
	}
}

// rival returns a second tracker over the same table with its own clock.
func rival(t *testing.T, tracker *StreakTracker, day time.Time) (*StreakTracker, *testutil.FixedClock) {
	t.Helper()
	clock := &testutil.FixedClock{T: day}
	other := NewStreakTracker(tracker.DB, testutil.Logger(t))
	other.now = clock.Now
	return other, clock
}

func TestRecordActivityRetriesAfterLostUpdate(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker, clock := newTrackerAt(t, day)
	if _, err := tracker.RecordActivity(ctx, "u1", "LOGIN"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	clock.T = day.AddDate(0, 0, 1)
	other, _ := rival(t, tracker, day.AddDate(0, 0, 1))
	writes := 0
	tracker.beforeWrite = func() {
		writes++
		if writes == 1 {
			if _, err := other.RecordActivity(ctx, "u1", "LOGIN"); err != nil {
				t.Errorf("rival RecordActivity: %v", err)
			}
		}
	}

	st, err := tracker.RecordActivity(ctx, "u1", "LOGIN")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if writes != 1 {
		t.Fatalf("write attempts = %d, want 1", writes)
	}
	if st.Outcome != StreakUnchanged || st.Streak.CurrentStreak != 2 {
		t.Fatalf("state after lost update = %+v", st)
	}

	streaks, err := tracker.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if len(streaks) != 1 || streaks[0].CurrentStreak != 2 || streaks[0].LongestStreak != 2 {
		t.Fatalf("stored streaks = %+v", streaks)
	}
}

func TestRecordActivityRetriesAfterLostInsert(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker, _ := newTrackerAt(t, day)
	other, _ := rival(t, tracker, day)

	writes := 0
	tracker.beforeWrite = func() {
		writes++
		if writes == 1 {
			if _, err := other.RecordActivity(ctx, "u1", "LOGIN"); err != nil {
				t.Errorf("rival RecordActivity: %v", err)
			}
		}
	}

	st, err := tracker.RecordActivity(ctx, "u1", "LOGIN")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if st.Outcome != StreakUnchanged || st.Streak.CurrentStreak != 1 {
		t.Fatalf("state after lost insert = %+v", st)
	}
	var n int64
	tracker.DB.Model(&models.UserStreak{}).Where("user_id = ?", "u1").Count(&n)
	if n != 1 {
		t.Fatalf("streak rows = %d, want 1", n)
	}
}

func TestRecordActivityReportsStoredRowAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker, clock := newTrackerAt(t, day)
	if _, err := tracker.RecordActivity(ctx, "u1", "LOGIN"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	// Every write attempt loses to a rival that logs the next day first.
	clock.T = day.AddDate(0, 0, 2)
	other, otherClock := rival(t, tracker, day)
	tracker.beforeWrite = func() {
		otherClock.Advance(24 * time.Hour)
		if _, err := other.RecordActivity(ctx, "u1", "LOGIN"); err != nil {
			t.Errorf("rival RecordActivity: %v", err)
		}
	}

	st, err := tracker.RecordActivity(ctx, "u1", "LOGIN")
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if st.Outcome != StreakUnchanged || st.Streak.CurrentStreak != 3 || st.Streak.LongestStreak != 3 {
		t.Fatalf("state after repeated conflicts = %+v", st)
	}
	if !st.Streak.LastActivityDate.Equal(CalendarDay(clock.T)) {
		t.Fatalf("LastActivityDate = %v, want %v", st.Streak.LastActivityDate, CalendarDay(clock.T))
	}
}

func TestRecordActivityConcurrentSameDay(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTrackerAt(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	const workers = 8
	var wg sync.WaitGroup
	states := make(chan *StreakState, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := tracker.RecordActivity(ctx, "u1", "LOGIN")
			if err != nil {
				errs <- err
				return
			}
			states <- st
		}()
	}
	wg.Wait()
	close(states)
	close(errs)
	for err := range errs {
		t.Fatalf("RecordActivity: %v", err)
	}

	started := 0
	for st := range states {
		if st.Streak.CurrentStreak != 1 {
			t.Fatalf("state = %+v", st)
		}
		if st.Outcome == StreakStarted {
			started++
		}
	}
	if started != 1 {
		t.Fatalf("started outcomes = %d, want 1", started)
	}

	streaks, err := tracker.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if len(streaks) != 1 || streaks[0].CurrentStreak != 1 || streaks[0].LongestStreak != 1 {
		t.Fatalf("stored streaks = %+v", streaks)
	}
}

func TestCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := CalendarDay(time.Date(2026, 3, 11, 2, 0, 0, 0, loc))
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("CalendarDay = %v, want %v", got, want)
	}
}
