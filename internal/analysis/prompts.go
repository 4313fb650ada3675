package analysis

import "fmt"

const analysisPromptFmt = `You are an email assistant for a software developer.

Analyze this email and provide a JSON response with:
- priority: "urgent" | "action_required" | "informative" | "low" | "spam"
- category: "billing" | "security" | "infrastructure" | "seo" | "newsletter" | "personal" | "github" | "other"
- summary: 1-2 sentence summary in %[1]s
- suggested_action: what to do (or null if no action needed), in %[1]s
- estimated_time_minutes: how long the action would take (1, 2, 5, 10, 15, 30)

Priority guidelines:
- urgent: Production errors, security alerts, billing limits exceeded
- action_required: Needs response or action but not time-critical
- informative: Useful info to read later
- low: Can be archived (marketing, generic newsletters)
- spam: Irrelevant, delete

Respond ONLY with valid JSON, no markdown or explanation.`

const replyPromptFmt = `You are an email assistant helping a software developer write email replies.

Write a concise reply to the email. Guidelines:
- Use a %s tone
- Be helpful and direct
- Keep it brief (2-4 sentences typically)
- Write in the same language as the original email
- If it's a notification/no-reply email, write a brief acknowledgment

Respond with ONLY the reply text, no subject line and no preamble, just the email body ready to send.`

func analysisPrompt(language string) string {
	return fmt.Sprintf(analysisPromptFmt, language)
}

func replyPrompt(tone Tone) string {
	return fmt.Sprintf(replyPromptFmt, tone)
}
