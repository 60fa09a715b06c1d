package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/pkg/llm"
)

const (
	ToolGetDate     = "get_date"
	ToolAppointment = "appointment"
)

var errUnknownTool = errors.New("unknown tool")

var toolDeclarations = []llm.Tool{
	{
		Name:        ToolGetDate,
		Description: "Retorna a data e a hora atuais no fuso de Brasília (UTC-03:00).",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	},
	{
		Name:        ToolAppointment,
		Description: "Registra o agendamento confirmado pelo paciente.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"dateISO": map[string]interface{}{
					"type":        "string",
					"description": "Data e hora no formato YYYY-MM-DDTHH:mm:ss-03:00",
				},
				"displayDate": map[string]interface{}{
					"type":        "string",
					"description": "Data por extenso, ex.: terça-feira, 4 de junho de 2024",
				},
				"displayTime": map[string]interface{}{
					"type":        "string",
					"description": "Horário no formato HH:mm",
				},
				"patientName": map[string]interface{}{
					"type":        "string",
					"description": "Nome do paciente, se informado",
				},
				"procedure": map[string]interface{}{
					"type":        "string",
					"description": "Procedimento de interesse, se informado",
				},
			},
			"required": []string{"dateISO", "displayDate", "displayTime"},
		},
	},
}

type dateResult struct {
	ISO      string `json:"iso"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

type appointmentArgs struct {
	DateISO     string `json:"dateISO"`
	DisplayDate string `json:"displayDate"`
	DisplayTime string `json:"displayTime"`
	PatientName string `json:"patientName"`
	Procedure   string `json:"procedure"`
}

type appointmentResult struct {
	Success     bool                `json:"success"`
	Appointment *entity.Appointment `json:"appointment"`
}

type toolError struct {
	Error string `json:"error"`
}

// toolRun is the per-request state tools read and write.
type toolRun struct {
	clock       *Clock
	now         time.Time
	appointment *entity.Appointment
}

// execute runs one call and returns the JSON the model sees. Failures become
// an error payload so the model can recover; they never abort the request.
func (r *toolRun) execute(call llm.ToolCall) (string, error) {
	var (
		result interface{}
		err    error
	)
	switch call.Name {
	case ToolGetDate:
		result = r.getDate()
	case ToolAppointment:
		result, err = r.recordAppointment(call.Arguments)
	default:
		err = fmt.Errorf("%w: %s", errUnknownTool, call.Name)
	}
	if err != nil {
		result = toolError{Error: err.Error()}
	}

	payload, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return `{"error":"internal"}`, marshalErr
	}
	return string(payload), err
}

func (r *toolRun) getDate() dateResult {
	return dateResult{
		ISO:      r.clock.FormatISO(r.now),
		Date:     r.clock.DisplayDate(r.now),
		Time:     r.clock.DisplayTime(r.now),
		Timezone: ZoneName,
	}
}

func (r *toolRun) recordAppointment(raw string) (*appointmentResult, error) {
	var args appointmentArgs
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid appointment arguments: %w", err)
	}

	parsed, err := r.clock.Parse(args.DateISO)
	if err != nil {
		return nil, err
	}
	corrected := r.clock.NormalizeAppointment(parsed, r.now)

	appt := &entity.Appointment{
		DateISO:     r.clock.FormatISO(corrected),
		DisplayDate: r.clock.DisplayDate(corrected),
		DisplayTime: r.clock.DisplayTime(corrected),
		PatientName: strings.TrimSpace(args.PatientName),
		Procedure:   strings.TrimSpace(args.Procedure),
	}
	if d := strings.TrimSpace(args.DisplayDate); d != "" {
		appt.DisplayDate = d
	}
	if t := strings.TrimSpace(args.DisplayTime); t != "" {
		appt.DisplayTime = t
	}

	// Several calls in one request: the last one wins.
	r.appointment = appt
	return &appointmentResult{Success: true, Appointment: appt}, nil
}
