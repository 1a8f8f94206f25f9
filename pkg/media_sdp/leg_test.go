package media_sdp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/leg_media/pkg/buffer"
	"github.com/arzzra/leg_media/pkg/multipart"
)

func newTestLeg(t *testing.T, media MediaLayer, mutate func(*Config)) (*Leg, *fakeSession) {
	t.Helper()

	session := newFakeSession("leg-test-1")
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	leg, err := NewLeg(session, media, cfg)
	require.NoError(t, err)
	return leg, session
}

func TestNewLegValidation(t *testing.T) {
	media := new(MockMediaLayer)

	_, err := NewLeg(nil, media, DefaultConfig())
	assert.True(t, IsSDPError(err, ErrorCodeInvalidInput))

	_, err = NewLeg(newFakeSession("s"), nil, DefaultConfig())
	assert.True(t, IsSDPError(err, ErrorCodeInvalidInput))

	cfg := DefaultConfig()
	cfg.MultipartPrefix = ""
	_, err = NewLeg(newFakeSession("s"), media, cfg)
	assert.True(t, IsSDPError(err, ErrorCodeInvalidInput))

	cfg = DefaultConfig()
	cfg.MaxBodySize = -1
	_, err = NewLeg(newFakeSession("s"), media, cfg)
	assert.Error(t, err)
}

func TestEstablishMediaEmptySDP(t *testing.T) {
	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, nil)

	err := leg.EstablishMedia(context.Background(), "", SDPTypeOffer)

	require.Error(t, err)
	assert.True(t, IsSDPError(err, ErrorCodeInvalidInput))
	assert.Equal(t, Flag(0), leg.State().Flags())
	assert.Equal(t, NegotiationIdle, leg.NegotiationState())

	disposition, preAnswered := session.snapshot()
	assert.Empty(t, disposition)
	assert.Equal(t, 0, preAnswered)
	media.AssertNotCalled(t, "NegotiateSDP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEstablishMediaSuccess(t *testing.T) {
	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, nil)

	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(true, true).Once()
	media.On("ChoosePort", mock.Anything, session, MediaTypeAudio).Return(nil).Once()
	media.On("ActivateTransport", mock.Anything, session).Return(nil).Once()

	err := leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer)
	require.NoError(t, err)

	state := leg.State()
	assert.True(t, state.SDPNegotiated())
	assert.True(t, state.RTPActive())
	assert.True(t, state.IOActive())
	assert.True(t, state.EarlyMedia())
	assert.False(t, state.NoReply())
	assert.Equal(t, NegotiationNegotiated, leg.NegotiationState())

	disposition, preAnswered := session.snapshot()
	assert.Equal(t, DispositionEarlyMedia, disposition)
	assert.Equal(t, 1, preAnswered)

	media.AssertExpectations(t)
}

func TestEstablishMediaRejected(t *testing.T) {
	tests := []struct {
		name        string
		shouldReply bool
		wantFlags   Flag
	}{
		{"with reply", true, 0},
		{"without reply", false, FlagNoReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media := new(MockMediaLayer)
			leg, session := newTestLeg(t, media, nil)

			media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeAnswer).Return(false, tt.shouldReply).Once()

			err := leg.EstablishMedia(context.Background(), testSDP, SDPTypeAnswer)

			require.Error(t, err)
			assert.True(t, IsSDPError(err, ErrorCodeNegotiationRejected))
			assert.Equal(t, tt.wantFlags, leg.State().Flags())
			assert.Equal(t, NegotiationRejected, leg.NegotiationState())

			_, preAnswered := session.snapshot()
			assert.Equal(t, 0, preAnswered)

			media.AssertNotCalled(t, "ChoosePort", mock.Anything, mock.Anything, mock.Anything)
			media.AssertNotCalled(t, "ActivateTransport", mock.Anything, mock.Anything)
		})
	}
}

func TestEstablishMediaAcceptedWithoutReply(t *testing.T) {
	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, nil)

	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(true, false)
	media.On("ChoosePort", mock.Anything, session, MediaTypeAudio).Return(nil)
	media.On("ActivateTransport", mock.Anything, session).Return(nil)

	require.NoError(t, leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer))

	assert.True(t, leg.State().NoReply())
	assert.True(t, leg.State().EarlyMedia())
}

func TestEstablishMediaPortSelectionFailure(t *testing.T) {
	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, nil)

	cause := errors.New("нет свободных портов")
	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(true, true)
	media.On("ChoosePort", mock.Anything, session, MediaTypeAudio).Return(cause)

	err := leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer)

	require.Error(t, err)
	assert.True(t, IsSDPError(err, ErrorCodePortSelection))
	assert.ErrorIs(t, err, cause)

	// Флаг согласования не откатывается
	assert.Equal(t, FlagSDPNegotiated, leg.State().Flags())

	disposition, preAnswered := session.snapshot()
	assert.Empty(t, disposition)
	assert.Equal(t, 0, preAnswered)
	media.AssertNotCalled(t, "ActivateTransport", mock.Anything, mock.Anything)
}

func TestEstablishMediaActivationFailure(t *testing.T) {
	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, nil)

	cause := errors.New("bind: address already in use")
	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(true, true)
	media.On("ChoosePort", mock.Anything, session, MediaTypeAudio).Return(nil)
	media.On("ActivateTransport", mock.Anything, session).Return(cause)

	err := leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer)

	require.Error(t, err)
	assert.True(t, IsSDPError(err, ErrorCodeActivation))
	assert.ErrorIs(t, err, cause)

	state := leg.State()
	assert.True(t, state.SDPNegotiated())
	assert.False(t, state.RTPActive())
	assert.False(t, state.IOActive())
	assert.False(t, state.EarlyMedia())

	_, preAnswered := session.snapshot()
	assert.Equal(t, 0, preAnswered)
}

func TestEstablishMediaRewrite(t *testing.T) {
	rewritten := strings.ReplaceAll(testSDP, "127.0.0.1", "10.0.0.1")

	t.Run("enabled", func(t *testing.T) {
		media := new(MockMediaLayer)
		leg, session := newTestLeg(t, media, func(c *Config) { c.RewriteSDP = true })
		session.set("sdp_replace_ip", "127.0.0.1|10.0.0.1")

		media.On("NegotiateSDP", mock.Anything, session, rewritten, SDPTypeOffer).Return(true, true).Once()
		media.On("ChoosePort", mock.Anything, session, MediaTypeAudio).Return(nil)
		media.On("ActivateTransport", mock.Anything, session).Return(nil)

		require.NoError(t, leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer))
		media.AssertExpectations(t)
	})

	t.Run("disabled", func(t *testing.T) {
		media := new(MockMediaLayer)
		leg, session := newTestLeg(t, media, nil)
		session.set("sdp_replace_ip", "127.0.0.1|10.0.0.1")

		media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(true, true).Once()
		media.On("ChoosePort", mock.Anything, session, MediaTypeAudio).Return(nil)
		media.On("ActivateTransport", mock.Anything, session).Return(nil)

		require.NoError(t, leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer))
		media.AssertExpectations(t)
	})

	t.Run("allocation failure", func(t *testing.T) {
		media := new(MockMediaLayer)
		leg, session := newTestLeg(t, media, func(c *Config) {
			c.RewriteSDP = true
			c.MaxBodySize = 16
		})
		session.set("sdp_replace_ip", "127.0.0.1|10.0.0.1")

		err := leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer)

		require.Error(t, err)
		assert.True(t, IsSDPError(err, ErrorCodeAllocation))
		assert.Equal(t, Flag(0), leg.State().Flags())
		media.AssertNotCalled(t, "NegotiateSDP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRewriteSDPResult(t *testing.T) {
	leg, session := newTestLeg(t, new(MockMediaLayer), nil)
	session.set("sdp_replace_a", "PCMU|PCMA")
	session.set("sdp_replace_b", "PCMA|G722")
	session.set("sdp_replace_bad", "no-separator")

	res, err := leg.RewriteSDP("a=rtpmap:0 PCMU/8000")
	require.NoError(t, err)
	assert.Equal(t, "a=rtpmap:0 G722/8000", res.SDP)
	assert.Equal(t, 2, res.Applied)
	assert.True(t, res.Changed())
}

// serialMedia считает одновременные вызовы ActivateTransport
type serialMedia struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func (m *serialMedia) NegotiateSDP(context.Context, Session, string, SDPType) (bool, bool) {
	return true, true
}

func (m *serialMedia) ChoosePort(context.Context, Session, MediaType) error {
	return nil
}

func (m *serialMedia) ActivateTransport(context.Context, Session) error {
	n := m.inFlight.Add(1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	m.inFlight.Add(-1)
	m.calls.Add(1)
	return nil
}

func TestActivateIsSerialized(t *testing.T) {
	media := &serialMedia{}
	leg, _ := newTestLeg(t, media, nil)

	const workers = 16
	var wg sync.WaitGroup
	var mismatch atomic.Bool

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, leg.Activate(context.Background()))
			state := leg.State()
			if state.RTPActive() != state.IOActive() {
				mismatch.Store(true)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), media.maxInFlight.Load())
	assert.Equal(t, int32(workers), media.calls.Load())
	assert.False(t, mismatch.Load())
	assert.True(t, leg.State().Has(FlagRTPActive|FlagIOActive))
}

func TestActivateReleasesLockOnFailure(t *testing.T) {
	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, nil)

	media.On("ActivateTransport", mock.Anything, session).Return(errors.New("boom")).Once()
	media.On("ActivateTransport", mock.Anything, session).Return(nil).Once()

	assert.Error(t, leg.Activate(context.Background()))
	assert.False(t, leg.State().RTPActive())

	done := make(chan error, 1)
	go func() { done <- leg.Activate(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("мьютекс не освобожден после ошибки")
	}
	assert.True(t, leg.State().RTPActive())
}

func TestNegotiationStateMachine(t *testing.T) {
	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, nil)

	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(false, true).Once()
	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(true, true).Once()

	assert.Equal(t, NegotiationIdle, leg.NegotiationState())

	out := leg.Negotiate(context.Background(), testSDP, SDPTypeOffer)
	assert.Equal(t, Outcome{Accepted: false, ShouldReply: true}, out)
	assert.Equal(t, NegotiationRejected, leg.NegotiationState())

	// re-INVITE после отказа
	out = leg.Negotiate(context.Background(), testSDP, SDPTypeOffer)
	assert.True(t, out.Accepted)
	assert.Equal(t, NegotiationNegotiated, leg.NegotiationState())

	leg.Reset()
	assert.Equal(t, NegotiationIdle, leg.NegotiationState())
	assert.True(t, leg.State().SDPNegotiated(), "Reset не сбрасывает флаги")
}

func TestBuildMultipart(t *testing.T) {
	leg, session := newTestLeg(t, new(MockMediaLayer), nil)

	body, err := leg.BuildMultipart(testSDP)
	require.NoError(t, err)
	assert.Nil(t, body)

	session.set("SIP_MULTIPART", "application/isup:payload")

	body, err = leg.BuildMultipart(testSDP)
	require.NoError(t, err)
	require.NotNil(t, body)
	assert.Equal(t, session.ID(), body.Boundary)
	assert.Equal(t, 1, body.Parts)
	assert.True(t, body.HasSDP)
	assert.True(t, strings.HasSuffix(string(body.Content), "--"+session.ID()+"--\r\n"))

	body, err = leg.BuildMultipartWithPrefix("other_prefix", testSDP)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestBuildMultipartTooLarge(t *testing.T) {
	leg, session := newTestLeg(t, new(MockMediaLayer), func(c *Config) { c.MaxBodySize = 32 })
	session.set("sip_multipart", "text/plain:"+strings.Repeat("x", 64))

	body, err := leg.BuildMultipart(testSDP)
	assert.Nil(t, body)
	assert.True(t, IsSDPError(err, ErrorCodeAllocation))
	assert.ErrorIs(t, err, buffer.ErrAllocation)
}

func TestBuildMultipartEmptyBoundary(t *testing.T) {
	session := newFakeSession("")
	session.set("sip_multipart", "text/plain:hello")

	leg, err := NewLeg(session, new(MockMediaLayer), DefaultConfig())
	require.NoError(t, err)

	body, err := leg.BuildMultipart(testSDP)
	assert.Nil(t, body)
	assert.Equal(t, ErrorCodeInvalidInput, ErrorCodeOf(err))
	assert.ErrorIs(t, err, multipart.ErrEmptyBoundary)
}

func TestLegMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	media := new(MockMediaLayer)
	leg, session := newTestLeg(t, media, func(c *Config) { c.Metrics = metrics })

	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(true, false).Once()
	media.On("NegotiateSDP", mock.Anything, session, testSDP, SDPTypeOffer).Return(false, true).Once()
	media.On("ChoosePort", mock.Anything, session, MediaTypeAudio).Return(nil)
	media.On("ActivateTransport", mock.Anything, session).Return(nil)

	require.NoError(t, leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer))
	require.Error(t, leg.EstablishMedia(context.Background(), testSDP, SDPTypeOffer))
	require.Error(t, leg.EstablishMedia(context.Background(), "", SDPTypeOffer))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.establishments.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.establishments.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.establishments.WithLabelValues("invalid_input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.negotiations.WithLabelValues("offer", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.negotiations.WithLabelValues("offer", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.noReply))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.activations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stateTransitions.WithLabelValues("idle", "negotiating")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stateTransitions.WithLabelValues("negotiating", "negotiated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stateTransitions.WithLabelValues("negotiated", "negotiating")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stateTransitions.WithLabelValues("negotiating", "rejected")))
}
