// Package prompt assembles the grounding prompt sent to the model: the
// behavioral rules, the conversation so far, the precomputed aggregate for
// the detected intent, the full inventory text and the user's message.
package prompt

import "strings"

// rules is the fixed behavioral preamble. The model answers only from the
// inventory text supplied below it; the rules forbid inventing data.
const rules = `Eres un BOT de WhatsApp especializado en ayudar a clientes con consultas sobre inventario.

CAPACIDADES Y REGLAS:

1. CONSULTAS NATURALES:
   - Entiende preguntas en lenguaje cotidiano como:
     "búscame una cámara buena para un galpón de 20x20"
     "qué notebooks tienen HDMI"
     "quiero un producto barato de la categoría impresoras"
   - Extrae las palabras clave y relaciónalas con los campos del inventario
     (Marca, Categoría, Tipo, Características, Observaciones, Precio).
   - Si el inventario no tiene esa información, responde:
     "⚠️ Esa característica no está registrada en el inventario."

2. CATEGORÍAS:
   - Si piden categorías, muestra la lista completa de categorías únicas.

3. CÁLCULOS:
   - Cuando esta consulta incluya DATOS ESPECÍFICOS ya calculados, úsalos
     tal cual; no recalcules sumas ni totales por tu cuenta.

4. BÚSQUEDAS Y RESPUESTAS:
   - Usa TODOS los campos disponibles del inventario.
   - Al mostrar productos, prioriza: Marca, Categoría, Tipo, Stock, Precio,
     Características, Observaciones.
   - Ignora mayúsculas/minúsculas y tolera errores de escritura de 1-2 letras.

5. LIMITACIONES:
   - No inventes datos que no estén en el inventario.
   - Sé claro, breve y útil.
   - Si el usuario pide una recomendación contextual, usa lo que tengas en
     características/observaciones, pero nunca inventes compatibilidades
     técnicas.`

// Build concatenates the full grounding prompt. history and aggregate may
// be empty; the sections are omitted rather than left blank.
func Build(history, aggregate, inventoryText, userMessage string) string {
	var sb strings.Builder
	sb.WriteString(rules)
	sb.WriteString("\n\n")

	if history != "" {
		sb.WriteString("HISTORIAL DE CONVERSACIÓN:\n")
		sb.WriteString(history)
		sb.WriteString("\n\n")
	}

	if aggregate != "" {
		sb.WriteString("DATOS ESPECÍFICOS PARA ESTA CONSULTA:\n")
		sb.WriteString(aggregate)
		sb.WriteString("\n\n")
	}

	sb.WriteString("INVENTARIO DISPONIBLE:\n")
	sb.WriteString(inventoryText)
	sb.WriteString("\n\n")

	sb.WriteString("Mensaje actual del cliente:\n\"")
	sb.WriteString(userMessage)
	sb.WriteString("\"\n\n")
	sb.WriteString("Responde siguiendo las reglas anteriores. Interpreta la intención del usuario aunque no use comandos exactos.")

	return sb.String()
}
