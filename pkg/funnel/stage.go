package funnel

import "strings"

// Stage is one step of the sales funnel. Ordered but not strictly
// linear: sessions can walk back to discovery at any point.
type Stage string

const (
	StageGreeting       Stage = "greeting"
	StageDiscovery      Stage = "discovery"
	StageRecommendation Stage = "recommendation"
	StageConsideration  Stage = "consideration"
	StageCart           Stage = "cart"
	StageCheckout       Stage = "checkout"
	StageClosed         Stage = "closed"
)

var allStages = []Stage{
	StageGreeting,
	StageDiscovery,
	StageRecommendation,
	StageConsideration,
	StageCart,
	StageCheckout,
	StageClosed,
}

func (s Stage) Valid() bool {
	for _, known := range allStages {
		if s == known {
			return true
		}
	}
	return false
}

// Signal is a detected conversational intent that may move the funnel.
type Signal string

const (
	SignalNone             Signal = ""
	SignalExpressNeed      Signal = "express_need"
	SignalAskRecommend     Signal = "ask_recommendation"
	SignalObjection        Signal = "objection"
	SignalAddToCart        Signal = "add_to_cart"
	SignalBeginCheckout    Signal = "begin_checkout"
	SignalCompleteCheckout Signal = "complete_checkout"
	SignalExit             Signal = "exit"
)

// Keyword tables checked in order; the first hit wins, so the more
// committal signals (checkout, exit) sit above the broad ones.
var signalKeywords = []struct {
	signal Signal
	words  []string
}{
	{SignalExit, []string{"goodbye", "bye for now", "end session", "end the chat", "quit", "that's all, thanks"}},
	{SignalCompleteCheckout, []string{"place the order", "place my order", "confirm the order", "confirm my order", "complete the purchase"}},
	{SignalBeginCheckout, []string{"checkout", "check out", "pay now", "proceed to payment"}},
	{SignalAddToCart, []string{"add to cart", "add it to my cart", "i'll take", "i will take", "i'll buy"}},
	{SignalObjection, []string{"too expensive", "too pricey", "not sure", "i'm hesitant", "need to think"}},
	{SignalAskRecommend, []string{"recommend", "suggest", "what do you have", "what would you", "best option"}},
	{SignalExpressNeed, []string{"i want", "i need", "i'm looking for", "i am looking for", "help me find", "something for"}},
}

// DetectSignal maps a raw user message to at most one funnel signal.
// Messages matching nothing return SignalNone and leave the stage
// untouched.
func DetectSignal(message string) Signal {
	lower := strings.ToLower(message)
	for _, table := range signalKeywords {
		for _, word := range table.words {
			if strings.Contains(lower, word) {
				return table.signal
			}
		}
	}
	return SignalNone
}
