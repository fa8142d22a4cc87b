package provider

import (
	"fmt"
	"strings"
)

// Prompts are tuned for Brazilian Portuguese certificates; the JSON field
// names are part of the wire contract with CertificateFields and
// Categorization and must not be translated.

const extractionPromptTemplate = `You are a document parser specialized in Brazilian Portuguese certificates.

Your task:
1. Clean the OCR text: remove artifacts, fix broken words and spacing, keep all meaningful information.
2. Extract the required fields from the cleaned text.

Extract these exact fields in JSON format:
- nome_participante: full name of the certificate recipient
- evento: name of the event, course, workshop or training
- local: location, city or institution where the event took place
- data: date when the event occurred (keep the original format)
- carga_horaria: duration or workload hours

Return ONLY a valid JSON object with these exact field names. Use null for
missing or unclear fields. Do not include explanations or code blocks.

OCR Text:
%s

JSON:`

const categorizationPromptTemplate = `You are an academic coordinator assistant. Classify the certificate below
into exactly one of the listed complementary-activity categories.

Available categories:
%s

Certificate fields:
- nome_participante: %s
- evento: %s
- local: %s
- data: %s
- carga_horaria: %s

Full certificate text:
%s

Return ONLY a valid JSON object:
{"categoria": "<exact category name from the list>", "confianca": <0.0-1.0>, "justificativa": "<one sentence in Portuguese>"}`

func extractionPrompt(text string) string {
	return fmt.Sprintf(extractionPromptTemplate, text)
}

func categorizationPrompt(rawText string, fields CertificateFields, catalog string) string {
	return fmt.Sprintf(categorizationPromptTemplate,
		catalog,
		orEmpty(fields.ParticipantName),
		orEmpty(fields.EventName),
		orEmpty(fields.Location),
		orEmpty(fields.EventDate),
		orEmpty(fields.Hours),
		rawText,
	)
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
