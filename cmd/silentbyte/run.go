package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Bhargav65/Silent-Byte/internal/config"
	"github.com/Bhargav65/Silent-Byte/internal/link"
	"github.com/Bhargav65/Silent-Byte/internal/model"
	"github.com/Bhargav65/Silent-Byte/internal/session"
	"github.com/Bhargav65/Silent-Byte/internal/signaling"
	"github.com/Bhargav65/Silent-Byte/internal/ui"
)

// runSession drives one end of a session: connect, create or join the
// room, bridge signaling events into the link controller, and shuttle
// stdin lines over the data channel.
func runSession(cfg *config.Client, code string, role model.Role) error {
	transport := session.NewWSTransport(cfg.WebSocketURL)
	ctrl := session.NewController(transport)
	if err := ctrl.Connect(); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.WebSocketURL, err)
	}
	defer ctrl.Close()

	lc := link.NewController(ctrl, role, cfg.ICEURL, cfg.STUNServer)
	defer lc.Cleanup()

	if role == model.RoleInitiator {
		ctrl.CreateRoom(code)
	} else {
		ctrl.JoinRoom(code)
	}

	stdin := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			stdin <- scanner.Text()
		}
		close(stdin)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ctx := context.Background()

	for {
		select {
		case ev := <-ctrl.Events():
			done, err := handleSessionEvent(ctx, ev, lc, role)
			if done || err != nil {
				return err
			}

		case ev := <-lc.Events():
			handleLinkEvent(ev, ctrl)

		case line, ok := <-stdin:
			if !ok {
				ctrl.LeaveRoom()
				return nil
			}
			if line == "" {
				continue
			}
			if !lc.Send([]byte(line)) {
				ui.PrintMuted("(queued; link not up yet)")
			}

		case <-interrupt:
			ctrl.LeaveRoom()
			ui.PrintMuted("left room")
			return nil
		}
	}
}

func handleSessionEvent(ctx context.Context, ev session.Event, lc *link.Controller, role model.Role) (bool, error) {
	switch e := ev.(type) {
	case session.RoomJoined:
		ui.PrintSuccess(fmt.Sprintf("room %s joined as %s", e.Code, e.Role))

	case session.JoinFailed:
		return true, fmt.Errorf("%s: %s", e.Op, e.Msg)

	case session.PeerArrived:
		ui.PrintSuccess("peer is here")
		if err := lc.Setup(ctx); err != nil {
			ui.PrintError("link setup: " + err.Error())
		}

	case session.PeerLeft:
		ui.PrintWarning("peer left the room")
		lc.Cleanup()

	case session.RestartLink:
		// Either side reconnected; renegotiate from a known-good state.
		lc.Cleanup()
		if err := lc.Setup(ctx); err != nil {
			ui.PrintError("link restart: " + err.Error())
		}

	case session.RemoteSignal:
		handleRemoteSignal(ctx, e, lc, role)

	case session.ReconnectAttempt:
		ui.PrintMuted(fmt.Sprintf("reconnecting... (attempt %d)", e.Attempt))

	case session.ReconnectFailed:
		return true, fmt.Errorf("reconnect failed, giving up")

	case session.StateChanged:
		// Quiet; the meaningful transitions surface above.
	}
	return false, nil
}

func handleRemoteSignal(ctx context.Context, sig session.RemoteSignal, lc *link.Controller, role model.Role) {
	var err error
	switch sig.Kind {
	case signaling.TypeOffer:
		// The responder's link may not exist yet when the first offer
		// lands.
		if role == model.RoleResponder {
			if err := lc.Setup(ctx); err != nil {
				ui.PrintError("link setup: " + err.Error())
				return
			}
		}
		err = lc.HandleRemoteOffer(sig.SDP)
	case signaling.TypeAnswer:
		err = lc.HandleRemoteAnswer(sig.SDP)
	case signaling.TypeICECandidate:
		err = lc.HandleRemoteCandidate(sig.Candidate)
	}
	if err != nil {
		// A failed negotiation step is not fatal; the link state
		// machine escalates to a restart if the link never comes up.
		ui.PrintWarning("negotiation step failed: " + err.Error())
	}
}

func handleLinkEvent(ev link.Event, ctrl *session.Controller) {
	switch e := ev.(type) {
	case link.Connected:
		if e.First {
			ui.PrintSuccess("peer link established")
		} else {
			ui.PrintSuccess("peer link recovered")
		}
		ctrl.SetLinkActive(true)

	case link.StateChanged:
		switch e.To {
		case link.StateDegraded:
			ui.PrintWarning("peer link degraded, repairing...")
		case link.StateFailed:
			ui.PrintWarning("peer link failed, restarting session")
		case link.StateAbsent:
			ctrl.SetLinkActive(false)
		}

	case link.Received:
		fmt.Printf("peer> %s\n", e.Payload)
	}
}
