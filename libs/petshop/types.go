package petshop

import "time"

// Appointment is one booked slot on a tenant's calendar. Date is a local
// calendar day (YYYY-MM-DD) and Time a local clock time (HH:MM); both are
// stored as text so the chat engine can compare them the way customers and
// the dialogue model phrase them.
type Appointment struct {
	ID             string
	TenantID       string
	PetName        string
	OwnerName      string
	OwnerPhone     string
	Service        string
	Date           string
	Time           string
	Status         Status
	Notes          string
	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Conversation roles as stored in conversation memory.
const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
)

// ConversationTurn is one stored message of a (tenant, contact) conversation.
type ConversationTurn struct {
	Role      string
	Text      string
	CreatedAt time.Time
}

type VoiceTone string

const (
	ToneFormal   VoiceTone = "formal"
	ToneFriendly VoiceTone = "friendly"
	ToneFun      VoiceTone = "fun"
)

type ChannelStatus string

const (
	ChannelConnected    ChannelStatus = "connected"
	ChannelPending      ChannelStatus = "pending"
	ChannelDisconnected ChannelStatus = "disconnected"
)

// Service is one offering in a tenant's catalogue.
type Service struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Duration int    `json:"duration"`
}

// DayHours is one weekday entry of a tenant's operating hours.
type DayHours struct {
	Day       string `json:"day"`
	IsOpen    bool   `json:"isOpen"`
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
}

// BusinessProfile is the per-tenant configuration the engine grounds on.
type BusinessProfile struct {
	TenantID      string
	ShopName      string
	AssistantName string
	VoiceTone     VoiceTone
	Services      []Service
	BusinessHours []DayHours
	Phone         string
	Address       string
	Neighborhood  string
	City          string
	State         string
	InstanceName  string
	ChannelStatus ChannelStatus
}
