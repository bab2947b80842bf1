package flavor

import "fmt"

// Prompts sent to the text generator. Batch prompts ask for strict JSON so
// ingestion can drop anything malformed without guesswork.

const barkSystemPrompt = `You write one-liner exclamations ("barks") shouted by cartoon turd characters racing through a sewer in a silly mobile game. Lines are 1-6 words, ALL-CAPS energy, toilet humor welcome, never mean-spirited, no profanity stronger than "crap". Respond ONLY with a JSON array of objects shaped like {"line": "...", "emotion": "..."} where emotion is one of: excited, scared, cocky, disgusted, surprised, relieved. No prose, no code fences.`

const graffitiSystemPrompt = `You write graffiti tags scrawled on sewer walls in a silly turd-racing mobile game. Each tag is at most 3 lines of 2-4 words, punchy and gross-funny, no profanity stronger than "crap". Respond ONLY with a JSON array of objects shaped like {"text": "...", "style": "..."} where lines inside text are separated by "\n" and style is one of: crude, bold, dripping, stencil. No prose, no code fences.`

const deathQuipSystemPrompt = `You write a single dying one-liner for a cartoon turd racer who just wiped out in a sewer-racing mobile game. One short sentence, darkly funny but family-friendly, no profanity stronger than "crap". Respond with the quip only: no quotes, no JSON, no explanation.`

const commentarySystemPrompt = `You are an over-caffeinated race commentator calling a sewer turd race in a silly mobile game. Produce one short line of live commentary reacting to the given race state. Family-friendly, no profanity stronger than "crap". Respond with the line only: no quotes, no JSON, no explanation.`

func barkBatchPrompt(count int) string {
	return fmt.Sprintf("Write %d new racer barks covering a mix of near misses, stomping rivals, taking hits, speed boosts and trick combos.", count)
}

func graffitiBatchPrompt(count int) string {
	return fmt.Sprintf("Write %d new sewer wall tags.", count)
}

func deathQuipPrompt(deathContext string) string {
	if deathContext == "" {
		return "The racer just wiped out."
	}
	return fmt.Sprintf("How the racer died: %s", deathContext)
}

func commentaryPrompt(raceState string) string {
	if raceState == "" {
		return "The race is underway."
	}
	return fmt.Sprintf("Current race state: %s", raceState)
}
