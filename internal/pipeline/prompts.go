package pipeline

import (
	"fmt"
	"strings"
)

const scriptSystemPrompt = `You are a short-form video scriptwriter. Respond with JSON only, no prose, matching:
{"title": string, "hook": string, "narration": [string, ...], "cta": string}
"hook" is the opening line that earns attention in the first seconds.
"narration" is an ordered list of beats, each one spoken paragraph.
"cta" is a single closing call to action. Keep language tight and spoken-word natural.`

const judgeSystemPrompt = `You are a ruthless script editor. Score the submitted video script and respond with JSON only, matching:
{"overall_score": number, "pass": boolean, "revision_notes": string}
"overall_score" is 1-10. "pass" is true only when the script needs no revision.
"revision_notes" must name concrete fixes when pass is false.`

const enhanceSystemPrompt = `You annotate narration for expressive text-to-speech delivery. Respond with JSON only, matching:
{"lines": [string, ...]}
Return exactly one line per input line, in the same order, with delivery cues in square brackets (for example "[pause]" or "[excited]") woven into the text. Never change the words being spoken.`

const describeSystemPrompt = `You write image generation prompts for video b-roll. Respond with JSON only, matching:
{"image_prompt": string, "motion": string}
"image_prompt" is one rich visual description of a single still frame, no text overlays.
"motion" is a short camera or subject movement to animate the still.`

func scriptUserPrompt(input Input, feedback []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", input.Topic)
	if input.Style != "" {
		fmt.Fprintf(&sb, "Style: %s\n", input.Style)
	}
	if input.TargetSegments > 0 {
		fmt.Fprintf(&sb, "Narration beats: exactly %d\n", input.TargetSegments)
	}
	if len(feedback) > 0 {
		sb.WriteString("\nA previous draft was rejected. Address every note:\n")
		for _, note := range feedback {
			fmt.Fprintf(&sb, "- %s\n", note)
		}
	}
	return sb.String()
}

func judgeUserPrompt(script ScriptArtifact) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\nHook: %s\n", script.Title, script.Hook)
	for i, beat := range script.Narration {
		fmt.Fprintf(&sb, "Beat %d: %s\n", i+1, beat)
	}
	if script.CTA != "" {
		fmt.Fprintf(&sb, "CTA: %s\n", script.CTA)
	}
	return sb.String()
}

func enhanceUserPrompt(lines []string) string {
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}
	return sb.String()
}

func describeUserPrompt(input Input, segmentText string, unitIndex, unitCount int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Narration: %s\n", segmentText)
	if input.Style != "" {
		fmt.Fprintf(&sb, "Visual style: %s\n", input.Style)
	}
	if unitCount > 1 {
		fmt.Fprintf(&sb, "This is visual %d of %d for the narration; vary the framing.\n", unitIndex+1, unitCount)
	}
	return sb.String()
}
