package ai

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
	"github.com/zhouzirui/sanatorium/backend/internal/model/persona"
)

// PromptTemplate is the instruction for one prompt key plus the text used
// when no model is available. Both may reference variables as {name}.
type PromptTemplate struct {
	Instruction string `yaml:"instruction"`
	Fallback    string `yaml:"fallback"`
}

// promptFile is the layout of the YAML override file.
type promptFile struct {
	Prompts map[string]PromptTemplate `yaml:"prompts"`
}

// PromptManager holds a template per prompt key.
type PromptManager struct {
	templates map[dialog.PromptKey]PromptTemplate
}

// NewPromptManager creates a manager with the built-in templates.
func NewPromptManager() *PromptManager {
	pm := &PromptManager{templates: make(map[dialog.PromptKey]PromptTemplate)}
	pm.loadDefaultTemplates()
	return pm
}

// LoadFile overrides templates from a YAML file. Keys missing from the file
// keep their defaults; empty fields keep the default value.
func (pm *PromptManager) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	var file promptFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse prompt file %s: %w", path, err)
	}
	for key, tpl := range file.Prompts {
		current := pm.templates[dialog.PromptKey(key)]
		if tpl.Instruction != "" {
			current.Instruction = tpl.Instruction
		}
		if tpl.Fallback != "" {
			current.Fallback = tpl.Fallback
		}
		pm.templates[dialog.PromptKey(key)] = current
	}
	return nil
}

// Template returns the template for key, or the generic one when key is unknown.
func (pm *PromptManager) Template(key dialog.PromptKey) PromptTemplate {
	if tpl, ok := pm.templates[key]; ok {
		return tpl
	}
	return genericTemplate
}

// Instruction renders the instruction for key.
func (pm *PromptManager) Instruction(key dialog.PromptKey, vars map[string]string) string {
	return render(pm.Template(key).Instruction, vars)
}

// Fallback renders the offline text for key.
func (pm *PromptManager) Fallback(key dialog.PromptKey, vars map[string]string) string {
	return render(pm.Template(key).Fallback, vars)
}

// BuildSystemPrompt combines the character with the instruction for one reply.
func (pm *PromptManager) BuildSystemPrompt(p persona.Persona, key dialog.PromptKey, vars map[string]string) string {
	return fmt.Sprintf(`Вы - %s, %s санатория «%s».

%s

Правила:
- отвечайте на русском языке, кратко, не более трёх предложений
- не придумывайте цены, номера бронирования и медицинские назначения
- не подтверждайте бронирование сами, это делает система

Задача для этого ответа:
%s`,
		p.Name,
		p.Title,
		p.Resort,
		p.PromptTraits(),
		pm.Instruction(key, vars),
	)
}

func render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

var genericTemplate = PromptTemplate{
	Instruction: "Ответьте клиенту по существу его сообщения: {user_message}",
	Fallback:    "Я с радостью помогу! Уточните, пожалуйста, ваш вопрос.",
}

func (pm *PromptManager) loadDefaultTemplates() {
	pm.templates[dialog.PromptGeneralQA] = PromptTemplate{
		Instruction: "Ответьте на вопрос гостя о санатории дружелюбно и по делу. Вопрос: {user_message}. {suspended_note}",
		Fallback:    "Я с радостью помогу! Уточните, пожалуйста, что вас интересует в санатории.",
	}
	pm.templates[dialog.PromptPricingInfo] = PromptTemplate{
		Instruction: "Гость спрашивает о стоимости: {user_message}. Объясните, что цена зависит от дат и количества гостей, и предложите оформить бронирование. {suspended_note}",
		Fallback:    "Стоимость зависит от дат заезда и количества гостей. Могу помочь подобрать вариант и оформить бронирование.",
	}
	pm.templates[dialog.PromptBookingStart] = PromptTemplate{
		Instruction: "Гость хочет забронировать номер. Поприветствуйте решение и попросите даты заезда в формате ГГГГММДД или ГГГГММДД-ГГГГММДД.",
		Fallback:    "Отлично, давайте оформим бронирование! Укажите даты заезда в формате ГГГГММДД или ГГГГММДД-ГГГГММДД.",
	}
	pm.templates[dialog.PromptBookingResume] = PromptTemplate{
		Instruction: "Гость вернулся к бронированию. Уже известно: {collected}. Попросите указать {next_field}.",
		Fallback:    "Продолжим бронирование. Уже известно: {collected}. Пожалуйста, укажите {next_field}.",
	}
	pm.templates[dialog.PromptAskDates] = PromptTemplate{
		Instruction: "{error_note}Попросите гостя указать даты заезда в формате ГГГГММДД или ГГГГММДД-ГГГГММДД.",
		Fallback:    "{error_note}Укажите, пожалуйста, даты заезда в формате ГГГГММДД или ГГГГММДД-ГГГГММДД.",
	}
	pm.templates[dialog.PromptAskGuests] = PromptTemplate{
		Instruction: "{error_note}Попросите гостя указать количество гостей числом.",
		Fallback:    "{error_note}Сколько гостей будет проживать? Укажите число.",
	}
	pm.templates[dialog.PromptAskContact] = PromptTemplate{
		Instruction: "{error_note}Попросите гостя оставить контактный телефон или e-mail.",
		Fallback:    "{error_note}Оставьте, пожалуйста, контактный телефон или e-mail.",
	}
	pm.templates[dialog.PromptAskMissingData] = PromptTemplate{
		Instruction: "Для бронирования не хватает данных: {missing}. Попросите указать {next_field}.",
		Fallback:    "Для бронирования не хватает данных: {missing}. Пожалуйста, укажите {next_field}.",
	}
	pm.templates[dialog.PromptBookingConfirmation] = PromptTemplate{
		Instruction: "Перечислите данные бронирования ({collected}) и попросите гостя подтвердить их ответом да или нет.",
		Fallback:    "Проверьте данные бронирования: {collected}. Всё верно? (да/нет)",
	}
	pm.templates[dialog.PromptBookingCompleted] = PromptTemplate{
		Instruction: "Сообщите, что бронирование {booking_id} подтверждено, и поблагодарите гостя.",
		Fallback:    "Ваше бронирование подтверждено! Номер брони: {booking_id}",
	}
	pm.templates[dialog.PromptBookingFailed] = PromptTemplate{
		Instruction: "Извинитесь: бронирование оформить не удалось. Предложите попробовать позже.",
		Fallback:    "Произошла ошибка при оформлении бронирования. Пожалуйста, попробуйте позже.",
	}
	pm.templates[dialog.PromptBookingCancelled] = PromptTemplate{
		Instruction: "Подтвердите отмену бронирования и спросите, чем ещё помочь.",
		Fallback:    "Бронирование отменено. Хотите начать новое бронирование?",
	}
	pm.templates[dialog.PromptBookingFinished] = PromptTemplate{
		Instruction: "Бронирование в этом диалоге уже завершено. Ответьте на сообщение гостя ({user_message}) и подскажите, что новое бронирование можно начать командой /reset.",
		Fallback:    "Текущее бронирование завершено. Чтобы начать заново, отправьте /reset.",
	}
}
