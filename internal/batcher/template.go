package batcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/vigilnet/vigilnet/internal/models"
)

var subjectTemplates = map[string]string{
	"en": "[VigilNet] %s alert: %d detection(s) for %s",
	"es": "[VigilNet] Alerta %s: %d deteccion(es) para %s",
}

var bodyHeaders = map[string]string{
	"en": "Security digest for %s\nWindow: %s - %s\nSeverity: %s | Detections: %d | Events: %d\n",
	"es": "Resumen de seguridad para %s\nVentana: %s - %s\nGravedad: %s | Detecciones: %d | Eventos: %d\n",
}

var bodyLine = map[string]string{
	"en": "  - [%s] %s (group=%s, count=%d, last=%s)\n",
	"es": "  - [%s] %s (grupo=%s, total=%d, ultimo=%s)\n",
}

// render produces subject/body_text deterministically from the tenant's
// locale, falling back to "en" for anything unrecognized.
func render(locale string, tenant *models.Tenant, severity models.Severity, count, eventCount int, detections []*models.Detection, windowStart, windowEnd time.Time) (subject, body string) {
	subjectTpl, ok := subjectTemplates[locale]
	if !ok {
		subjectTpl = subjectTemplates["en"]
	}
	headerTpl, ok := bodyHeaders[locale]
	if !ok {
		headerTpl = bodyHeaders["en"]
	}
	lineTpl, ok := bodyLine[locale]
	if !ok {
		lineTpl = bodyLine["en"]
	}

	subject = fmt.Sprintf(subjectTpl, strings.ToUpper(string(severity)), count, tenant.Name)

	var b strings.Builder
	b.WriteString(fmt.Sprintf(headerTpl, tenant.Name,
		windowStart.Format("2006-01-02 15:04 MST"),
		windowEnd.Format("2006-01-02 15:04 MST"),
		strings.ToUpper(string(severity)), count, eventCount))

	for _, d := range detections {
		b.WriteString(fmt.Sprintf(lineTpl, strings.ToUpper(string(d.Severity)), d.DetectionType, d.GroupKey,
			d.EventCount, d.LastEventAt.Format("2006-01-02 15:04 MST")))
	}

	return subject, b.String()
}
