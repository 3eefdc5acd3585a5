package ai

import (
	"strings"

	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
)

var fieldNames = map[dialog.Field]string{
	dialog.FieldDates:   "даты заезда",
	dialog.FieldGuests:  "количество гостей",
	dialog.FieldContact: "контактный телефон или e-mail",
}

var errorNotes = map[dialog.ErrorKind]string{
	dialog.ErrorInvalidDate:      "Не удалось распознать даты. ",
	dialog.ErrorInvalidGuests:    "Количество гостей указано неверно. ",
	dialog.ErrorInvalidContact:   "Контакт указан неверно. ",
	dialog.ErrorIncompleteData:   "Собраны не все данные. ",
	dialog.ErrorSubmissionFailed: "Бронирование не прошло. ",
}

// Variables flattens a generation request into template variables.
func Variables(req dialog.GenerationRequest) map[string]string {
	resp := req.Context

	vars := map[string]string{
		"user_message":   req.UserText,
		"stage":          string(resp.Stage),
		"intent":         resp.Intent,
		"booking_id":     resp.BookingID,
		"error_note":     errorNotes[resp.ErrorKind],
		"collected":      describeCollected(resp.CollectedData),
		"missing":        describeFields(resp.MissingFields),
		"next_field":     "",
		"suspended_note": "",
	}
	if len(resp.MissingFields) > 0 {
		vars["next_field"] = fieldNames[resp.MissingFields[0]]
	}
	if resp.Suspended {
		vars["suspended_note"] = "У гостя есть незавершённое бронирование: напомните, что его можно продолжить."
	}
	return vars
}

func describeFields(fields []dialog.Field) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, fieldNames[f])
	}
	return strings.Join(names, ", ")
}

func describeCollected(data map[string]*string) string {
	if len(data) == 0 {
		return "пока ничего"
	}
	parts := make([]string, 0, len(data))
	for _, f := range dialog.RequiredFields() {
		value := "не указано"
		if v := data[string(f)]; v != nil {
			value = *v
		}
		parts = append(parts, fieldNames[f]+": "+value)
	}
	return strings.Join(parts, "; ")
}
