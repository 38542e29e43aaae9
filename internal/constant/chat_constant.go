package constant

// Message roles persisted with every chat message.
const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"
	ChatMessageRoleTool      = "tool"
)

// Credential classes understood by the rate limiter.
const (
	CredentialClassChat = "chat"
	CredentialClassOTP  = "otp"
)

// Greeting sent on the first turn of a fresh session.
const InitialAssistantGreeting = "Hi! How can I help you today?"

// Farewell sent when a session reaches closed through an explicit exit.
const SessionFarewell = "Thanks for chatting with us! Start a new conversation any time."

// Degraded response used when both the primary and fallback models are
// unreachable.
const DegradedResponse = "I'm having trouble reaching our assistant right now. Please try again in a moment."

// Context keys collected progressively across the funnel. Profile keys
// survive stage exits; transient keys are cleared when a stage exits.
const (
	ContextKeyIntent          = "intent"
	ContextKeyPreferences     = "preferences"
	ContextKeyCartRef         = "cart_ref"
	ContextKeyDeliveryAddress = "delivery_address"
	ContextKeyModelOverride   = "model_override"
)
