package email

const (
	subjectTaskReminderFmt = "Recordatorio: %s"
	subjectBudgetLinkFmt   = "Tu presupuesto: %s"
)
