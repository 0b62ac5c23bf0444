package main

import (
	"chatroulette/backend/internal/client"
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/negotiator"
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
)

const dataChannelLabel = "chat"

func main() {
	server := flag.String("server", "http://localhost:8080", "chat API base URL")
	interval := flag.Duration("poll", time.Second, "session and signal poll interval")
	flag.Parse()

	log.Init(log.Config{Level: "info", Pretty: true, ServiceName: "chatroulette-peer"})
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	if err := run(ctx, client.New(*server), *interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("peer failed")
	}
}

func run(ctx context.Context, api *client.Client, interval time.Duration) error {
	l := log.Ctx(ctx)

	userID, err := api.Register(ctx)
	if err != nil {
		return err
	}
	l.Info().Str(log.FieldUserID, userID).Msg("registered")

	iceServers, err := api.ICEServers(ctx)
	if err != nil {
		return err
	}

	if _, err := api.Join(ctx, true); err != nil {
		return err
	}
	session, err := waitForSession(ctx, api, interval)
	if err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Leave(leaveCtx, session.ID); err != nil {
			l.Warn().Err(err).Msg("failed to leave session")
		}
	}()
	l.Info().Str(log.FieldSessionID, session.ID).Str(log.FieldPartnerID, session.PartnerOf(userID)).
		Bool("video", session.HasVideo).Msg("matched")
	if !session.HasVideo {
		return errors.New("partner joined without video; nothing to negotiate")
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return err
	}
	defer pc.Close()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.Info().Str("state", state.String()).Msg("peer connection state")
	})

	n, err := negotiator.New(api, pc, session, userID)
	if err != nil {
		return err
	}
	if n.Initiator() {
		dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			return err
		}
		wireDataChannel(ctx, dc, userID)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() == dataChannelLabel {
				wireDataChannel(ctx, dc, userID)
			}
		})
	}

	return n.Run(ctx, interval)
}

func waitForSession(ctx context.Context, api *client.Client, interval time.Duration) (*models.ChatSession, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		session, err := api.CurrentSession(ctx)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func wireDataChannel(ctx context.Context, dc *webrtc.DataChannel, userID string) {
	l := log.Ctx(ctx)
	dc.OnOpen(func() {
		l.Info().Msg("data channel open")
		if err := dc.SendText("hello from " + userID); err != nil {
			l.Warn().Err(err).Msg("failed to greet partner")
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			l.Info().Str("text", string(msg.Data)).Msg("peer message")
		}
	})
}
