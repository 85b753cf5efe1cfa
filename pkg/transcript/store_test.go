package transcript

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"KBAssist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, role models.Role, text string) models.Message {
	return models.Message{ID: id, Role: role, Text: text, Timestamp: time.Now()}
}

func TestAppendKeepsOrder(t *testing.T) {
	s := NewStore()
	s.Append(msg("a", models.RoleModel, "hi"))
	s.Append(msg("b", models.RoleUser, "plans?"))
	s.Append(msg("c", models.RoleModel, "we offer"))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
	assert.Equal(t, 3, s.Len())
}

func TestAppendClampsTimestamps(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Append(models.Message{ID: "a", Role: models.RoleUser, Timestamp: now})
	s.Append(models.Message{ID: "b", Role: models.RoleModel, Timestamp: now.Add(-time.Minute)})
	s.Append(models.Message{ID: "c", Role: models.RoleModel})

	snap := s.Snapshot()
	assert.True(t, snap[1].Timestamp.Equal(now))
	assert.False(t, snap[2].Timestamp.Before(snap[1].Timestamp))
}

func TestSetFeedbackTouchesOnlyTarget(t *testing.T) {
	s := NewStore()
	s.Append(models.Message{ID: "a", Role: models.RoleModel, Text: "one", Sources: []models.Source{{URI: "https://slt.lk"}}})
	s.Append(models.Message{ID: "b", Role: models.RoleUser, Text: "two", Attachment: &models.Attachment{Name: "bill.pdf", MimeType: "application/pdf", Data: "AAAA"}})
	s.Append(models.Message{ID: "c", Role: models.RoleModel, Text: "three"})
	before := s.Snapshot()

	require.True(t, s.SetFeedback("c", models.FeedbackPositive))
	after := s.Snapshot()

	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[1], after[1])
	assert.Equal(t, models.FeedbackPositive, after[2].Feedback)

	require.True(t, s.SetFeedback("c", models.FeedbackNegative))
	got, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, models.FeedbackNegative, got.Feedback)
}

func TestSetFeedbackUnknownIDIsNoop(t *testing.T) {
	s := NewStore()
	s.Append(msg("a", models.RoleModel, "hi"))
	before := s.Snapshot()

	assert.False(t, s.SetFeedback("nope", models.FeedbackPositive))
	assert.Equal(t, before, s.Snapshot())
}

func TestSnapshotIsDecoupled(t *testing.T) {
	s := NewStore()
	s.Append(models.Message{ID: "a", Role: models.RoleModel, Sources: []models.Source{{URI: "https://slt.lk/plans"}}})

	snap := s.Snapshot()
	snap[0].Sources[0].URI = "mutated"
	s.Append(msg("b", models.RoleUser, "more"))
	s.SetFeedback("a", models.FeedbackNegative)

	assert.Len(t, snap, 1)
	assert.Equal(t, models.FeedbackNone, snap[0].Feedback)
	fresh := s.Snapshot()
	assert.Equal(t, "https://slt.lk/plans", fresh[0].Sources[0].URI)
}

func TestAppendCopiesCallerValue(t *testing.T) {
	s := NewStore()
	att := &models.Attachment{Name: "a.pdf", Data: "AAAA"}
	s.Append(models.Message{ID: "a", Role: models.RoleUser, Attachment: att})
	att.Name = "changed.pdf"

	got, _ := s.Get("a")
	assert.Equal(t, "a.pdf", got.Attachment.Name)
}

func TestConcurrentAppendAndSnapshot(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Append(msg(fmt.Sprintf("%d-%d", i, j), models.RoleUser, "x"))
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 400, s.Len())
}
