package negotiator

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

var ErrNotParticipant = errors.New("user is not a participant of the session")

// Peer is the subset of *webrtc.PeerConnection the negotiator drives.
type Peer interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(*webrtc.ICECandidate))
}

// Relay carries signals between the two participants. *client.Client
// implements it.
type Relay interface {
	SendSignal(ctx context.Context, sessionID, toUserID string, typ models.SignalType, payload string) error
	Signals(ctx context.Context, sessionID string) ([]models.SignalingMessage, error)
}

// Negotiator runs the offer/answer exchange for one side of a video session.
// UserA offers, UserB answers, and both trickle candidates. The relay replays
// every signal on each poll, so signals are applied once by ID.
type Negotiator struct {
	relay     Relay
	peer      Peer
	sessionID string
	self      string
	partner   string
	initiator bool

	ctxMu sync.Mutex
	ctx   context.Context

	mu        sync.Mutex
	seen      map[uint]struct{}
	pending   []webrtc.ICECandidateInit
	remoteSet bool
}

func New(relay Relay, peer Peer, session *models.ChatSession, self string) (*Negotiator, error) {
	if !session.HasParticipant(self) {
		return nil, ErrNotParticipant
	}
	return &Negotiator{
		relay:     relay,
		peer:      peer,
		sessionID: session.ID,
		self:      self,
		partner:   session.PartnerOf(self),
		initiator: session.IsInitiator(self),
		ctx:       context.Background(),
		seen:      make(map[uint]struct{}),
	}, nil
}

func (n *Negotiator) Initiator() bool { return n.initiator }

// Start hooks candidate trickling and, on the initiator side, sends the offer.
func (n *Negotiator) Start(ctx context.Context) error {
	n.ctxMu.Lock()
	n.ctx = ctx
	n.ctxMu.Unlock()

	n.peer.OnICECandidate(n.trickle)

	if !n.initiator {
		return nil
	}
	offer, err := n.peer.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := n.peer.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	return n.relay.SendSignal(ctx, n.sessionID, n.partner, models.SignalOffer, offer.SDP)
}

// Poll fetches the signal history and applies every signal not seen before.
func (n *Negotiator) Poll(ctx context.Context) error {
	sigs, err := n.relay.Signals(ctx, n.sessionID)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sig := range sigs {
		if _, ok := n.seen[sig.ID]; ok {
			continue
		}
		n.seen[sig.ID] = struct{}{}
		if sig.FromUserID != n.partner {
			continue
		}
		if err := n.apply(ctx, sig); err != nil {
			return fmt.Errorf("signal %d (%s): %w", sig.ID, sig.Type, err)
		}
	}
	return nil
}

// Run starts the negotiation and polls until ctx is done. Poll failures are
// logged and retried on the next tick.
func (n *Negotiator) Run(ctx context.Context, interval time.Duration) error {
	if err := n.Start(ctx); err != nil {
		return err
	}

	l := log.Ctx(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := n.Poll(ctx); err != nil && ctx.Err() == nil {
			l.Warn().Err(err).Str(log.FieldSessionID, n.sessionID).Msg("signal poll failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (n *Negotiator) apply(ctx context.Context, sig models.SignalingMessage) error {
	switch sig.Type {
	case models.SignalOffer:
		if n.initiator || n.remoteSet {
			return nil
		}
		if err := n.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sig.Payload}); err != nil {
			return err
		}
		answer, err := n.peer.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		if err := n.peer.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("failed to set local description: %w", err)
		}
		return n.relay.SendSignal(ctx, n.sessionID, n.partner, models.SignalAnswer, answer.SDP)
	case models.SignalAnswer:
		if !n.initiator || n.remoteSet {
			return nil
		}
		return n.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sig.Payload})
	case models.SignalICECandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(sig.Payload), &candidate); err != nil {
			return fmt.Errorf("bad candidate payload: %w", err)
		}
		if !n.remoteSet {
			n.pending = append(n.pending, candidate)
			return nil
		}
		return n.peer.AddICECandidate(candidate)
	}
	return nil
}

func (n *Negotiator) setRemote(desc webrtc.SessionDescription) error {
	if err := n.peer.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	n.remoteSet = true

	pending := n.pending
	n.pending = nil
	for _, c := range pending {
		if err := n.peer.AddICECandidate(c); err != nil {
			return fmt.Errorf("failed to add buffered candidate: %w", err)
		}
	}
	return nil
}

// trickle runs on pion's goroutines; a nil candidate ends gathering.
func (n *Negotiator) trickle(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	n.ctxMu.Lock()
	ctx := n.ctx
	n.ctxMu.Unlock()

	payload, err := json.Marshal(c.ToJSON())
	if err != nil {
		return
	}
	if err := n.relay.SendSignal(ctx, n.sessionID, n.partner, models.SignalICECandidate, string(payload)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldSessionID, n.sessionID).Msg("failed to send candidate")
	}
}
