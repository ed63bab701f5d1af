package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-firesync/internal/adapter"
	"github.com/MKhiriev/go-firesync/internal/auth"
	"github.com/MKhiriev/go-firesync/internal/cache"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/mock"
	"github.com/MKhiriev/go-firesync/models"
)

type message struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

func body(frames ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(frames, "")))
}

func sseFrame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

func testQuery(t *testing.T) *adapter.Query {
	t.Helper()
	q, err := adapter.NewQuery("http://localhost:9000", nil)
	require.NoError(t, err)
	return q.Child("messages")
}

// collect читает события до закрытия канала
func collect[T any](t *testing.T, sub *Subscription[T]) []models.Event[T] {
	t.Helper()
	var events []models.Event[T]
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("subscription did not terminate in time")
			return nil
		}
	}
}

func abortOnEnd(err error) Decision {
	if errors.Is(err, ErrStreamEnded) {
		return Abort
	}
	return Continue
}

func fastRetry() BackoffFactory {
	return ConstantBackoff(time.Millisecond, 0)
}

// ── frames ──────────────────────────────────────────────────────────────────

func TestSubscription_PutAndPatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		sseFrame("put", `{"path":"/","data":{"-Na":{"author":"ann","content":"hi"},"-Nb":{"author":"bob","content":"yo"}}}`),
		sseFrame("patch", `{"path":"/-Na","data":{"content":"edited"}}`),
		sseFrame("put", `{"path":"/-Nb/author","data":"robert"}`),
	), nil)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{ErrorHandler: abortOnEnd}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 4)
	assert.Equal(t, "-Na", events[0].Key)
	assert.Equal(t, message{Author: "ann", Content: "hi"}, events[0].Object)
	assert.Equal(t, "-Nb", events[1].Key)
	assert.Equal(t, message{Author: "ann", Content: "edited"}, events[2].Object)
	assert.Equal(t, message{Author: "robert", Content: "yo"}, events[3].Object)
	for _, ev := range events {
		assert.Equal(t, models.SourceOnlineStream, ev.Source)
		assert.Equal(t, models.InsertOrUpdate, ev.Kind)
	}

	assert.ErrorIs(t, sub.Err(), ErrStreamEnded)
	assert.Equal(t, StateTerminated, sub.State())
}

func TestSubscription_DeleteFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		sseFrame("put", `{"path":"/-Na","data":{"author":"ann"}}`),
		sseFrame("put", `{"path":"/-Na","data":null}`),
	), nil)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{ErrorHandler: abortOnEnd}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 2)
	assert.Equal(t, models.Delete, events[1].Kind)
	assert.Equal(t, "ann", events[1].Object.Author)
}

func TestSubscription_RootDeleteRemovesEveryElement(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		sseFrame("put", `{"path":"/","data":{"-Na":{"author":"ann"},"-Nb":{"author":"bob"}}}`),
		sseFrame("put", `{"path":"/","data":null}`),
	), nil)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{ErrorHandler: abortOnEnd}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 4)
	assert.Equal(t, models.Delete, events[2].Kind)
	assert.Equal(t, "ann", events[2].Object.Author)
	assert.Equal(t, models.Delete, events[3].Kind)
	assert.Equal(t, "-Nb", events[3].Key)
}

func TestSubscription_IgnoresKeepAliveAndNoise(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		"\n\n",
		sseFrame("keep-alive", "null"),
		": comment line\n",
		"garbage without separator\n",
		sseFrame("rules_debug", `{"x":1}`),
		"data: {\"path\":\"/-Nz\",\"data\":{\"author\":\"nobody\"}}\n\n",
		"event: put\r\ndata: {\"path\":\"/-Na\",\"data\":{\"author\":\"ann\"}}\r\n\r\n",
	), nil)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{ErrorHandler: abortOnEnd}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 1)
	assert.Equal(t, "ann", events[0].Object.Author)
}

func TestSubscription_ElementRoot(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		sseFrame("put", `{"path":"/","data":null}`),
		sseFrame("put", `{"path":"/","data":{"author":"ann","content":"hi"}}`),
		sseFrame("patch", `{"path":"/content","data":"bye"}`),
	), nil)

	q := testQuery(t).Child("-Na")
	sub := Subscribe(context.Background(), tr, q, cache.New[message](), Options{ElementRoot: "-Na", ErrorHandler: abortOnEnd}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 3)
	assert.True(t, events[0].IsEmpty())
	assert.Equal(t, models.SourceOnlineStream, events[0].Source)
	assert.Equal(t, "-Na", events[1].Key)
	assert.Equal(t, message{Author: "ann", Content: "hi"}, events[1].Object)
	assert.Equal(t, message{Author: "ann", Content: "bye"}, events[2].Object)
}

// ── termination ─────────────────────────────────────────────────────────────

func TestSubscription_CancelFrameIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		sseFrame("put", `{"path":"/-Na","data":{"author":"ann"}}`),
		sseFrame("cancel", `"permission denied"`),
	), nil).Times(1)

	handled := false
	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{
		ErrorHandler: func(error) Decision { handled = true; return Continue },
		Backoff:      fastRetry(),
	}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 1)
	assert.ErrorIs(t, sub.Err(), ErrCancelled)
	assert.False(t, handled)
	assert.Equal(t, StateTerminated, sub.State())
}

func TestSubscription_ReconnectsAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	gomock.InOrder(
		tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(nil, &adapter.RequestError{StatusCode: 503, Err: adapter.ErrServiceUnavailable}),
		tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
			sseFrame("put", `{"path":"/-Na","data":{"author":"ann"}}`),
		), nil),
	)

	var seen []error
	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{
		ErrorHandler: func(err error) Decision {
			seen = append(seen, err)
			return abortOnEnd(err)
		},
		Backoff: fastRetry(),
	}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 1)
	require.Len(t, seen, 2)
	assert.ErrorIs(t, seen[0], adapter.ErrServiceUnavailable)
	assert.ErrorIs(t, seen[1], ErrStreamEnded)
}

func TestSubscription_AbortTerminatesWithError(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(nil, &adapter.RequestError{StatusCode: 401, Err: adapter.ErrUnauthorized}).Times(1)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{
		ErrorHandler: func(error) Decision { return Abort },
	}, logger.Nop())
	events := collect(t, sub)

	assert.Empty(t, events)
	assert.ErrorIs(t, sub.Err(), adapter.ErrUnauthorized)
}

func TestSubscription_BackoffExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	failure := errors.New("connection refused")
	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(nil, failure).Times(3)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{
		Backoff: ConstantBackoff(time.Millisecond, 2),
	}, logger.Nop())
	collect(t, sub)

	assert.ErrorIs(t, sub.Err(), failure)
}

func TestSubscription_EstablishedStreamResetsBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	first := errors.New("connection refused")
	last := errors.New("connection reset")
	gomock.InOrder(
		tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(nil, first),
		tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(), nil),
		tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(nil, last),
	)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{
		Backoff: ConstantBackoff(time.Millisecond, 1),
	}, logger.Nop())
	collect(t, sub)

	// одна попытка на каждый обрыв: счётчик сбрасывается после подключения
	assert.ErrorIs(t, sub.Err(), last)
}

func TestSubscription_MalformedFrameGoesToHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		sseFrame("put", `{"path":`),
	), nil)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{
		ErrorHandler: func(error) Decision { return Abort },
	}, logger.Nop())
	collect(t, sub)

	assert.ErrorIs(t, sub.Err(), ErrMalformedFrame)
}

func TestSubscription_MergeErrorGoesToHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
		sseFrame("patch", `{"path":"/-Na/unknown_field","data":1}`),
	), nil)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{
		ErrorHandler: func(error) Decision { return Abort },
	}, logger.Nop())
	collect(t, sub)

	assert.ErrorIs(t, sub.Err(), cache.ErrUnknownField)
}

type countingTokens struct {
	invalidated atomic.Int32
}

func (c *countingTokens) Token(context.Context) (string, error) { return "t", nil }
func (c *countingTokens) Invalidate()                           { c.invalidated.Add(1) }

func TestSubscription_AuthRevokedReconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	gomock.InOrder(
		tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
			sseFrame("auth_revoked", `"token expired"`),
		), nil),
		tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(body(
			sseFrame("put", `{"path":"/-Na","data":{"author":"ann"}}`),
		), nil),
	)

	tokens := &countingTokens{}
	var _ auth.TokenSource = tokens

	handled := 0
	sub := Subscribe(context.Background(), tr, testQuery(t).WithTokenSource(tokens), cache.New[message](), Options{
		ErrorHandler: func(err error) Decision {
			handled++
			return abortOnEnd(err)
		},
	}, logger.Nop())
	events := collect(t, sub)

	require.Len(t, events, 1)
	assert.Equal(t, int32(1), tokens.invalidated.Load())
	// только финальный конец потока проходит через обработчик
	assert.Equal(t, 1, handled)
}

func TestSubscription_CloseAbortsRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	pr, pw := io.Pipe()
	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(pr, nil).Times(1)

	sub := Subscribe(context.Background(), tr, testQuery(t), cache.New[message](), Options{Backoff: fastRetry()}, logger.Nop())

	go func() {
		_, _ = pw.Write([]byte(sseFrame("put", `{"path":"/-Na","data":{"author":"ann"}}`)))
	}()

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "-Na", ev.Key)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
	assert.Equal(t, StateStreaming, sub.State())

	sub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
	assert.Equal(t, StateTerminated, sub.State())
}

func TestSubscription_ContextCancelWhileReconnecting(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)

	tr.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline")).MinTimes(1)

	ctx, cancel := context.WithCancel(context.Background())
	sub := Subscribe(ctx, tr, testQuery(t), cache.New[message](), Options{
		Backoff: ConstantBackoff(time.Hour, 0),
	}, logger.Nop())

	require.Eventually(t, func() bool { return sub.State() == StateReconnecting }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.NoError(t, sub.Err())
}

// ── helpers ─────────────────────────────────────────────────────────────────

func TestRawPayload(t *testing.T) {
	assert.Equal(t, "null", rawPayload(nil))
	assert.Equal(t, "hello", rawPayload([]byte(`"hello"`)))
	assert.Equal(t, `say "hi"`, rawPayload([]byte(`"say \"hi\""`)))
	assert.Equal(t, "42", rawPayload([]byte(`42`)))
	assert.Equal(t, `{"a":1}`, rawPayload([]byte(`{"a":1}`)))
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/a/b", joinPath("", "/a/b"))
	assert.Equal(t, "/key", joinPath("/key", "/"))
	assert.Equal(t, "/key/a/b", joinPath("/key", "/a/b"))
	assert.Equal(t, "/key", normalizeRoot("key/"))
	assert.Empty(t, normalizeRoot("/"))
}
