package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinicflow/appointment-agent/internal/booking"
	"github.com/clinicflow/appointment-agent/internal/timewindow"
)

const instantDisplayFormat = "Monday, January 2, 2006 at 3:04 PM"

// systemPrompt frames the assistant's role for the text-generation
// collaborator.
func systemPrompt(doctorName string, now time.Time) string {
	return fmt.Sprintf(`You are a friendly and professional AI assistant helping patients book appointments with %s.

Your role is to:
1. Greet the patient warmly
2. Collect the patient's name
3. Ask about their symptoms or reason for visit
4. Based on symptoms, recommend %s as the best match
5. Ask for their preferred date and time for the appointment
6. Check availability and suggest alternatives if needed
7. Confirm the appointment details before booking

Guidelines:
- Always be polite and professional
- If a requested time is not available, suggest the next available slot
- Always confirm appointment details before finalizing
- Use natural, conversational language
- If the user provides incomplete information, ask clarifying questions
- Format dates and times clearly (e.g., "Monday, January 15th at 2:00 PM")
- After collecting symptoms, always recommend %s as the specialist for their condition

Current date and time: %s`,
		doctorName, doctorName, doctorName,
		now.Format(instantDisplayFormat))
}

// formatInstant renders an instant the way the prompt guidelines ask for.
func formatInstant(t time.Time) string {
	return t.Format(instantDisplayFormat)
}

// availabilityHint is the structured result of the availability probe that
// the engine attaches to a turn.
type availabilityHint struct {
	checked   bool
	available bool
	suggested *timewindow.Slot
	daySlots  []timewindow.Slot
	preferred time.Time
}

// maxHintedSlots bounds the same-day open slots listed in the hint block.
const maxHintedSlots = 3

// annotateUtterance appends a structured snapshot of the known booking
// fields, and the availability hint when one was computed, to the raw
// utterance. Only the annotated form goes to the collaborator; history keeps
// the original.
func annotateUtterance(text string, record *booking.Record, doctorName string, hint availabilityHint) string {
	var ctx strings.Builder

	if record.PatientName != "" {
		fmt.Fprintf(&ctx, "\nPatient name: %s\n", record.PatientName)
	}
	if record.ReasonForVisit != "" {
		fmt.Fprintf(&ctx, "Symptoms/Reason: %s\n", record.ReasonForVisit)
		fmt.Fprintf(&ctx, "Doctor assigned: %s\n", doctorName)
	}
	if record.RequestedInstant != nil {
		fmt.Fprintf(&ctx, "Requested appointment time: %s\n", formatInstant(*record.RequestedInstant))
	}

	if hint.checked {
		if hint.available {
			fmt.Fprintf(&ctx, "\nThe requested time (%s) is available!\n", formatInstant(hint.preferred))
		} else {
			ctx.WriteString("\nThe requested time is not available. ")
			if hint.suggested != nil {
				fmt.Fprintf(&ctx, "Next available slot: %s\n", formatInstant(hint.suggested.Start))
			}
			if len(hint.daySlots) > 0 {
				times := make([]string, 0, maxHintedSlots)
				for i, slot := range hint.daySlots {
					if i == maxHintedSlots {
						break
					}
					times = append(times, slot.Start.Format("3:04 PM"))
				}
				fmt.Fprintf(&ctx, "Available slots that day: %s\n", strings.Join(times, ", "))
			}
		}
	}

	if ctx.Len() == 0 {
		return text
	}
	return text + "\n\n[Context]" + ctx.String()
}
