package services

import (
	"context"
	"fmt"
	"strings"
)

const (
	ussdRootMenu   = "CON Select Option:\n1. Track Bus\n2. Seat Availability"
	ussdPromptStop = "CON Enter Stop ID (e.g., s21a):"
	ussdPromptBus  = "CON Enter Bus ID (e.g., b1):"
)

// USSDRequest is one USSD gateway callback. Text carries the whole path entered
// so far, joined with '*', so no session state is kept between turns.
type USSDRequest struct {
	SessionID   string
	PhoneNumber string
	Text        string
}

// HandleUSSD renders the reply for a USSD path. Replies start with CON when more
// input is expected and END when the exchange is over.
func (d *ChannelDispatcher) HandleUSSD(ctx context.Context, req USSDRequest) string {
	input := strings.TrimSpace(req.Text)
	var parts []string
	if input != "" {
		parts = strings.Split(input, "*")
	}

	if len(parts) == 0 {
		d.count(channelUSSDLabel, commandMenuTag)
		return ussdRootMenu
	}

	switch parts[0] {
	case "1":
		d.count(channelUSSDLabel, "1")
		if len(parts) == 1 {
			return ussdPromptStop
		}
		track, reply := d.trackStop(ctx, strings.TrimSpace(parts[1]))
		if track == nil {
			return "END " + reply
		}
		return fmt.Sprintf("END Next bus for %s arriving in %s. %d seats available.",
			track.RouteCode, track.minutesText(), track.Bus.SeatCount)
	case "2":
		d.count(channelUSSDLabel, "2")
		if len(parts) == 1 {
			return ussdPromptBus
		}
		busID := strings.TrimSpace(parts[1])
		bus, reply := d.lookupBus(ctx, busID)
		if bus == nil {
			return "END " + reply
		}
		return fmt.Sprintf("END Bus %s: %d seats available.", busID, bus.SeatCount)
	}

	d.count(channelUSSDLabel, commandUnknownTag)
	return ussdRootMenu
}
