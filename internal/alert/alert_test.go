package alert

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) Send(recipient, subject, htmlBody string) error {
	m.sent = append(m.sent, recipient)
	return nil
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, Warning, lvl)

	_, err = ParseLevel("bogus")
	require.Error(t, err)
}

func TestHandlerFiltersBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue()
	mailer := &fakeMailer{}
	h, err := NewHandler(q, dir, "node1", "cluster1", mailer, DefaultHTMLTemplate, zap.NewNop().Sugar())
	require.NoError(t, err)
	h.SetLevel(Error)
	h.SetRecipients([]string{"ops@example.com"})

	h.Start(context.Background())
	defer h.Stop()

	q.Push(Record{Time: time.Now(), Level: Warning, ResourceName: "db", Message: "below threshold"})
	q.Push(Record{Time: time.Now(), Level: Critical, ResourceName: "db", Message: "above threshold"})

	require.Eventually(t, func() bool { return len(mailer.sent) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ops@example.com"}, mailer.sent)
}

func TestHandlerAppendsAlertMeetingThresholdToLog(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue()
	h, err := NewHandler(q, dir, "node1", "cluster1", &fakeMailer{}, DefaultHTMLTemplate, zap.NewNop().Sugar())
	require.NoError(t, err)
	h.SetLevel(NotSet)

	h.Start(context.Background())
	defer h.Stop()

	now := time.Now()
	q.Push(Record{Time: now, Level: Info, ResourceName: "db", Message: "hello"})

	path := filepath.Join(dir, "alerts.log."+now.Format("2006-01-02_15"))
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestClientPushesRecordsOntoQueue(t *testing.T) {
	q := NewQueue()
	c := &Client{Queue: q, HostName: "node1", ClusterName: "cluster1"}
	c.Warning("db", "g1", "flaky")

	rec, ok := q.Pop(context.Background())
	require.True(t, ok)
	assert.Equal(t, Warning, rec.Level)
	assert.Equal(t, "db", rec.ResourceName)
}
