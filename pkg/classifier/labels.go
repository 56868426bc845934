package classifier

import "fmt"

// Label is one intent category offered to the zero-shot classifier.
type Label struct {
	ID          string
	Name        string
	Description string
	Synonyms    []string
}

// Candidate is the text sent to the classifier for this label.
func (l Label) Candidate() string {
	return fmt.Sprintf("%s: %s", l.Name, l.Description)
}

// DefaultLabels is the fixed support intent catalogue.
var DefaultLabels = []Label{
	{
		ID:          "billing",
		Name:        "Billing Issue",
		Description: "Charges, invoices, overbilling, refunds, payment failures.",
		Synonyms:    []string{"bill", "charge", "invoice", "payment", "refund", "credit card"},
	},
	{
		ID:          "connectivity",
		Name:        "Internet Connectivity",
		Description: "No connection, slow speeds, intermittent drops, latency.",
		Synonyms:    []string{"no internet", "offline", "slow", "lag", "disconnect", "packet loss"},
	},
	{
		ID:          "device_config",
		Name:        "Device Configuration",
		Description: "Router/modem setup, firmware, Wi-Fi password, port forwarding.",
		Synonyms:    []string{"router", "modem", "firmware", "wifi password", "port forward", "ssid"},
	},
	{
		ID:          "cancellation",
		Name:        "Cancellation",
		Description: "Cancel service, downgrade, upgrade, pause account.",
		Synonyms:    []string{"cancel", "terminate", "end service", "stop plan", "downgrade", "upgrade"},
	},
	{
		ID:          "general_info",
		Name:        "General Information",
		Description: "Pricing plans, coverage, availability, sales questions.",
		Synonyms:    []string{"price", "plan", "available", "coverage", "offer", "promotion"},
	},
	{
		ID:          "chitchat",
		Name:        "ChitChat",
		Description: "Greetings, thanks, casual conversation not needing action.",
		Synonyms:    []string{"hi", "hello", "thanks", "how are you", "good morning"},
	},
}

func candidates(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.Candidate()
	}
	return out
}
