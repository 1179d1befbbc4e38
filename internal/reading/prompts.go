package reading

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/tarot"
)

func seeker(p profile.Profile, now time.Time) string {
	return fmt.Sprintf("The seeker is %s, born in the month of %s, %d years old.",
		p.Gender, p.MonthName(), p.Age(now))
}

const voice = "Answer in Persian, in a warm and mystical tone, in at most 250 words. Do not mention that you are an AI."

func dreamPrompt(p profile.Profile, narrative string, now time.Time) string {
	return strings.Join([]string{
		"You are an experienced dream interpreter.",
		seeker(p, now),
		"Interpret the following dream, covering its symbols and what they suggest for the seeker's near future.",
		voice,
		"Dream:",
		narrative,
	}, "\n")
}

func coffeePrompt(p profile.Profile, markers []string, now time.Time) string {
	notCup, unsure := gateway.DefaultInvalidMarkers[0], gateway.DefaultInvalidMarkers[1]
	if len(markers) > 0 {
		notCup = markers[0]
	}
	if len(markers) > 1 {
		unsure = markers[1]
	}
	return strings.Join([]string{
		"You are a seasoned Turkish coffee cup reader.",
		seeker(p, now),
		fmt.Sprintf("First decide whether the photo shows the inside of a drunk coffee cup or its saucer. If it clearly does not, reply with exactly %s. If you cannot tell, reply with exactly %s.", notCup, unsure),
		"Otherwise describe the shapes formed by the grounds and read the seeker's fortune from them.",
		voice,
	}, "\n")
}

func tarotPrompt(p profile.Profile, layout tarot.Layout, cards []tarot.DrawnCard, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a tarot reader.\n")
	b.WriteString(seeker(p, now))
	fmt.Fprintf(&b, "\nThe spread is %s with %d cards, in position order:\n", layout.Name, len(cards))
	for i, c := range cards {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Label())
	}
	b.WriteString("Interpret each position, then give an overall reading.\n")
	b.WriteString(voice)
	return b.String()
}
