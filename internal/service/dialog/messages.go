package dialog

// Replies that are fixed by the state machine and never go through generation.
const (
	msgBookingConfirmed = "Ваше бронирование подтверждено! Номер брони: %s"
	msgBookingFailed    = "Произошла ошибка при оформлении бронирования. Пожалуйста, попробуйте позже."
	msgBookingCancelled = "Бронирование отменено. Хотите начать новое бронирование?"
	msgConfirmReprompt  = "Не понял ваш ответ. Подтверждаете бронирование? (%s)"

	// FallbackReply is sent when the text generator fails.
	FallbackReply = "Извините, возникли технические трудности. Пожалуйста, повторите позже."
)
