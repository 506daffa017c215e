// Package wellness is a keyword-matched chat responder for general wellness
// tips. It gives no medical advice and keeps no conversation state.
package wellness

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	CategoryStress    = "stress"
	CategoryTired     = "tired"
	CategorySleep     = "sleep"
	CategoryHydration = "hydration"
	CategoryExercise  = "exercise"
	CategoryMental    = "mental"
	CategoryGeneral   = "general"
)

// Disclaimer is appended to every reply.
const Disclaimer = "\n\n⚠️ **Disclaimer:** I am a wellness assistant providing general information only. I cannot provide medical advice. Please consult with a healthcare professional for medical concerns."

type keywordSet struct {
	category string
	keywords []string
}

// Checked in order; the first set with a substring hit wins.
var keywordSets = []keywordSet{
	{CategoryStress, []string{"stress", "anxious", "overwhelmed", "pressure"}},
	{CategoryTired, []string{"tired", "fatigue", "exhausted", "low energy"}},
	{CategorySleep, []string{"sleep", "insomnia", "sleepless", "restless"}},
	{CategoryHydration, []string{"hydration", "water", "dehydrated", "thirsty"}},
	{CategoryExercise, []string{"exercise", "workout", "fitness", "active"}},
	{CategoryMental, []string{"mental", "depress", "anxiety", "mood", "emotional"}},
}

var responses = map[string][]string{
	CategoryStress: {
		"Stress is normal, but it's important to manage it. Try deep breathing exercises: inhale for 4 seconds, hold for 7, exhale for 8.",
		"Regular physical activity can help reduce stress. Even a 10-minute walk can make a difference.",
		"Consider mindfulness meditation - just 5 minutes a day can help calm your mind.",
	},
	CategoryTired: {
		"Fatigue can be a sign of dehydration. Make sure you're drinking enough water throughout the day.",
		"Consider your sleep quality. Adults typically need 7-9 hours of quality sleep each night.",
		"Iron-rich foods like spinach, lentils, and lean meats can help combat fatigue.",
	},
	CategorySleep: {
		"Maintain a consistent sleep schedule, even on weekends. This helps regulate your body's internal clock.",
		"Create a relaxing bedtime routine - avoid screens for at least an hour before bed.",
		"Make sure your bedroom is cool, dark, and quiet for optimal sleep conditions.",
	},
	CategoryHydration: {
		"Aim for 8 glasses of water daily, but your needs may vary based on activity level and climate.",
		"If you struggle to drink enough water, try adding slices of lemon, cucumber, or berries for flavor.",
		"Remember that fruits and vegetables also contribute to your daily hydration needs.",
	},
	CategoryGeneral: {
		"A balanced diet with plenty of fruits, vegetables, and whole grains supports overall health.",
		"Regular check-ups are important for preventive care. Don't skip your annual physical.",
		"Social connections are vital for mental wellness. Make time for friends and family.",
	},
	CategoryExercise: {
		"The World Health Organization recommends 150 minutes of moderate exercise per week.",
		"Find activities you enjoy - you're more likely to stick with exercise if it's fun for you.",
		"Remember to warm up before exercise and cool down afterward to prevent injury.",
	},
	CategoryMental: {
		"It's okay to ask for help when you need it. Talking to someone can make a big difference.",
		"Practice gratitude by noting three things you're thankful for each day.",
		"Set realistic goals and celebrate small achievements along the way.",
	},
}

// Intro is the greeting returned by GET /api/chat/intro.
type Intro struct {
	Message      string   `json:"message"`
	Capabilities []string `json:"capabilities"`
	Disclaimer   string   `json:"disclaimer"`
}

var intro = Intro{
	Message: "Hello! I'm your Wellness Assistant. I can provide general wellness tips about stress, sleep, hydration, exercise, and mental health. What would you like to talk about today?",
	Capabilities: []string{
		"General wellness and lifestyle tips",
		"Stress management techniques",
		"Sleep improvement suggestions",
		"Hydration reminders",
		"Exercise recommendations",
		"Mental wellness guidance",
	},
	Disclaimer: "⚠️ IMPORTANT: I cannot provide medical advice, diagnosis, or treatment recommendations. Please consult healthcare professionals for medical concerns.",
}

// Reply is one chat answer.
type Reply struct {
	Response  string    `json:"response"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// Responder picks canned answers. pick returns an index in [0, n).
type Responder struct {
	mu   sync.Mutex
	pick func(n int) int
	now  func() time.Time
}

func NewResponder() *Responder {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Responder{pick: rng.Intn, now: time.Now}
}

// Classify returns the first category whose keywords occur in message, or
// general.
func Classify(message string) string {
	lower := strings.ToLower(message)
	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.category
			}
		}
	}
	return CategoryGeneral
}

// Respond answers message with a tip from its category plus the disclaimer.
func (r *Responder) Respond(message string) Reply {
	category := Classify(message)
	options := responses[category]

	r.mu.Lock()
	i := r.pick(len(options))
	r.mu.Unlock()

	return Reply{
		Response:  options[i] + Disclaimer,
		Category:  category,
		Timestamp: r.now().UTC(),
	}
}

// Intro returns the static greeting.
func (r *Responder) Intro() Intro {
	out := intro
	out.Capabilities = append([]string(nil), intro.Capabilities...)
	return out
}
