package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_FillsIdentityAndDelivers(t *testing.T) {
	rec := NewRecorder()
	e := Record(context.Background(), rec, Event{ActorID: 1, Action: "user.block", TargetType: models.AuditTargetUser, TargetID: "7"})

	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.False(t, e.OccurredAt.IsZero())
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, e.ID, rec.Events()[0].ID)
}

func TestRecord_SwallowsFailures(t *testing.T) {
	rec := &Recorder{Err: errors.New("sink offline")}
	assert.NotPanics(t, func() {
		Record(context.Background(), rec, Event{Action: "user.block"})
	})
	assert.Empty(t, rec.Events())

	// A cancelled request context does not stop delivery.
	ok := NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	Record(ctx, ok, Event{Action: "user.unblock"})
	assert.Len(t, ok.Events(), 1)

	Record(context.Background(), nil, Event{Action: "noop"})
}

func TestMulti_AttemptsEverySink(t *testing.T) {
	failing := &Recorder{Err: errors.New("down")}
	healthy := NewRecorder()

	err := Multi{failing, nil, healthy, Noop{}}.Emit(context.Background(), Event{ID: "x"})
	assert.Error(t, err)
	assert.Len(t, healthy.Events(), 1)
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	sub := client.Subscribe(ctx, "storefront:audit")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "storefront:audit")
	require.NoError(t, pub.Emit(ctx, Event{ID: "abc", ActorID: 2, Action: "vendor.set_status", TargetID: "9"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, "vendor.set_status", got.Action)

	assert.Error(t, NewRedisPublisher(nil, "x").Emit(ctx, Event{}))
}

func TestDBSink(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	sink := NewDBSink(db)

	e := Event{
		ID: uuid.NewString(), ActorID: 3, Action: "product.set_status",
		TargetType: models.AuditTargetProduct, TargetID: TargetID(12),
		Meta: map[string]interface{}{"status": "BLOCKED"}, OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, sink.Emit(context.Background(), e))

	var row models.AuditLog
	require.NoError(t, db.First(&row, "id = ?", e.ID).Error)
	assert.Equal(t, "12", row.TargetID)
	assert.Equal(t, "BLOCKED", row.Meta["status"])
}
