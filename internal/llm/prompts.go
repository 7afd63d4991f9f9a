package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/healthbot/backend/pkg/logger"
)

type Perspective string

const (
	PerspectivePatient Perspective = "patient"
	PerspectiveDoctor  Perspective = "doctor"
)

func ParsePerspective(s string) (Perspective, bool) {
	switch Perspective(strings.ToLower(strings.TrimSpace(s))) {
	case "", PerspectivePatient:
		return PerspectivePatient, true
	case PerspectiveDoctor:
		return PerspectiveDoctor, true
	}
	return "", false
}

const patientSystemPrompt = "You are a caring medical expert who helps patients understand their health information in simple, reassuring terms."

const patientPrompt = `You are a compassionate medical expert helping a patient understand their medical report.

Medical Report Context:
%s

Patient Question: %s

Please provide a clear, easy-to-understand response that:
1. Uses simple, non-medical language when possible
2. Explains medical terms in plain English
3. Is reassuring but honest about any concerns
4. Provides practical advice for the patient
5. Encourages them to ask their doctor if they have concerns

Remember: The patient may be anxious about their health, so be supportive and clear.

Response:`

const doctorSystemPrompt = "You are a senior medical expert with extensive clinical experience, providing professional medical analysis and recommendations."

const doctorPrompt = `You are a senior medical expert analyzing a medical report for clinical decision-making.

Medical Report Context:
%s

Clinical Question: %s

Please provide a detailed, professional clinical response that includes:
1. Key clinical findings and their significance
2. Relevant medical terminology and pathophysiology
3. Differential diagnosis considerations
4. Evidence-based treatment recommendations
5. Follow-up and monitoring recommendations
6. Any red flags or concerning findings

Use appropriate medical terminology and clinical reasoning.

Response:`

// BuildReportPrompt returns the system and user prompts for a report question.
func BuildReportPrompt(query string, contextChunks []string, perspective Perspective) (string, string) {
	joined := strings.Join(contextChunks, "\n\n")
	if perspective == PerspectiveDoctor {
		return doctorSystemPrompt, fmt.Sprintf(doctorPrompt, joined, query)
	}
	return patientSystemPrompt, fmt.Sprintf(patientPrompt, joined, query)
}

func (c *Client) AnswerFromReport(ctx context.Context, query string, contextChunks []string, perspective Perspective) (string, error) {
	system, user := BuildReportPrompt(query, contextChunks, perspective)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	logger.Info("Report answer generated",
		zap.String("perspective", string(perspective)),
		zap.Int("chunks", len(contextChunks)),
		zap.Int("response_length", len(resp.Content)),
	)

	return resp.Content, nil
}
