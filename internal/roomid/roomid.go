package roomid

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
)

var adjectives = []string{
	"quick", "calm", "brave", "bright", "eager",
	"gentle", "grand", "green", "golden", "warm",
	"bold", "clear", "crisp", "deep", "fresh",
	"kind", "light", "mild", "neat", "plain",
	"proud", "pure", "safe", "sharp", "smart",
	"soft", "sweet", "true", "vast", "wise",
}

var nouns = []string{
	"frog", "tiger", "river", "cloud", "stone",
	"leaf", "bird", "wolf", "bear", "hawk",
	"deer", "lion", "eagle", "whale", "otter",
	"lake", "moon", "star", "wave", "wind",
	"flame", "frost", "peak", "cave", "dawn",
	"dusk", "mist", "rain", "storm", "grove",
}

// Generate creates a memorable room name in adjective-noun-NN format,
// e.g. "gentle-otter-42".
func Generate() string {
	adj := adjectives[randomIndex(len(adjectives))]
	noun := nouns[randomIndex(len(nouns))]
	num := randomIndex(100)
	return fmt.Sprintf("%s-%s-%02d", adj, noun, num)
}

// Normalize ensures consistent formatting (lowercase, trimmed).
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Valid reports whether a room ID is non-empty and free of whitespace.
func Valid(id string) bool {
	return id != "" && !strings.ContainsAny(id, " \t\n")
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
