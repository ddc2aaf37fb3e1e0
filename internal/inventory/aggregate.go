package inventory

import (
	"fmt"
	"strconv"
	"strings"
)

// Column-role candidates, checked in order. The source sheet has no fixed
// schema, so roles are inferred from header names the way the spreadsheets
// in the field actually label them.
var (
	categoryColumns = []string{"categoria", "categoría", "category", "tipo"}
	stockColumns    = []string{"stock", "cantidad", "existencias", "disponible"}
	priceColumns    = []string{"precio", "price", "valor", "costo"}
)

// Categories lists the distinct category values in first-appearance order.
func Categories(s *Snapshot) string {
	idx := s.findColumn(categoryColumns)
	if idx < 0 {
		return "No se encontró columna de categoría en el inventario."
	}

	seen := make(map[string]struct{})
	var cats []string
	for _, row := range s.Rows {
		val := row.value(idx)
		if val == "" {
			continue
		}
		key := strings.ToLower(val)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cats = append(cats, val)
	}

	var sb strings.Builder
	sb.WriteString("📋 **TODAS LAS CATEGORÍAS DISPONIBLES:**\n\n")
	for i, cat := range cats {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, cat)
	}
	fmt.Fprintf(&sb, "\n**Total de categorías: %d**", len(cats))
	return sb.String()
}

// StockTotal reports the stock sum, how many rows carry stock, and the mean
// stock over those rows.
func StockTotal(s *Snapshot) string {
	idx := s.findColumn(stockColumns)
	if idx < 0 {
		return "No se encontró columna de stock en el inventario."
	}

	var total float64
	var withStock int
	for _, row := range s.Rows {
		n, ok := parseNumber(row.value(idx))
		if !ok || n <= 0 {
			continue
		}
		total += n
		withStock++
	}

	var sb strings.Builder
	sb.WriteString("📊 **RESUMEN DE STOCK:**\n\n")
	fmt.Fprintf(&sb, "• Stock total: **%s** unidades\n", formatUnits(total))
	fmt.Fprintf(&sb, "• Productos con stock: **%d**\n", withStock)
	if withStock > 0 {
		fmt.Fprintf(&sb, "• Promedio por producto: **%s** unidades", trimFloat(total/float64(withStock)))
	} else {
		sb.WriteString("• Promedio por producto: **0** unidades")
	}
	return sb.String()
}

// ValueTotal reports Σ precio×stock. Rows missing either number contribute
// nothing to the sum and are reported as incomplete rather than dropped
// silently.
func ValueTotal(s *Snapshot) string {
	priceIdx := s.findColumn(priceColumns)
	if priceIdx < 0 {
		return "No se encontró columna de precio en el inventario."
	}
	stockIdx := s.findColumn(stockColumns)
	if stockIdx < 0 {
		return "No se encontró columna de stock en el inventario."
	}

	var total float64
	var valued, incomplete int
	for _, row := range s.Rows {
		price, okP := parseNumber(row.value(priceIdx))
		stock, okS := parseNumber(row.value(stockIdx))
		if !okP || !okS {
			incomplete++
			continue
		}
		total += price * stock
		valued++
	}

	var sb strings.Builder
	sb.WriteString("💰 **VALOR DEL INVENTARIO:**\n\n")
	fmt.Fprintf(&sb, "• Valor total: **$%s**\n", formatMoney(total))
	fmt.Fprintf(&sb, "• Productos valorados: **%d**\n", valued)
	fmt.Fprintf(&sb, "• Productos con datos incompletos: **%d**\n", incomplete)
	if valued > 0 {
		fmt.Fprintf(&sb, "• Valor promedio por producto: **$%s**", formatMoney(total/float64(valued)))
	} else {
		sb.WriteString("• Valor promedio por producto: **$0.00**")
	}
	return sb.String()
}

// Search returns the rows where every term matches at least one field,
// case-insensitive substring. An empty term list matches every row; an
// empty result is an explicit "no matches" text, not an error.
func Search(s *Snapshot, terms []string) string {
	var matched []int
	for i, row := range s.Rows {
		if rowMatches(row, terms) {
			matched = append(matched, i)
		}
	}

	if len(matched) == 0 {
		return fmt.Sprintf("No se encontraron productos con: %s", strings.Join(terms, ", "))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 **PRODUCTOS ENCONTRADOS: %d**\n\n", len(matched))
	for _, i := range matched {
		sb.WriteString(renderRow(s.Columns, s.Rows[i], i+1))
		sb.WriteString("\n")
	}

	// Totals over the matched rows, when the columns exist.
	priceIdx := s.findColumn(priceColumns)
	stockIdx := s.findColumn(stockColumns)
	if priceIdx >= 0 && stockIdx >= 0 {
		var totalStock, totalValue float64
		for _, i := range matched {
			price, okP := parseNumber(s.Rows[i].value(priceIdx))
			stock, okS := parseNumber(s.Rows[i].value(stockIdx))
			if okS {
				totalStock += stock
			}
			if okP && okS {
				totalValue += price * stock
			}
		}
		sb.WriteString("📊 **TOTALES:**\n")
		fmt.Fprintf(&sb, "• Stock total: %s unidades\n", formatUnits(totalStock))
		fmt.Fprintf(&sb, "• Valor total: $%s", formatMoney(totalValue))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func rowMatches(row Row, terms []string) bool {
	for _, term := range terms {
		term = strings.ToLower(term)
		found := false
		for _, field := range row {
			if strings.Contains(strings.ToLower(field), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// parseNumber reads a cell as a number, tolerating currency signs, spaces
// and thousands separators.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// formatUnits renders a whole quantity with thousands separators.
func formatUnits(n float64) string {
	return groupDigits(fmt.Sprintf("%.0f", n))
}

// formatMoney renders an amount with two decimals and thousands separators.
func formatMoney(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	dot := strings.IndexByte(s, '.')
	return groupDigits(s[:dot]) + s[dot:]
}

// trimFloat renders a float with one decimal, dropping a trailing ".0".
func trimFloat(n float64) string {
	s := fmt.Sprintf("%.1f", n)
	return strings.TrimSuffix(s, ".0")
}

func groupDigits(intPart string) string {
	neg := strings.HasPrefix(intPart, "-")
	digits := strings.TrimPrefix(intPart, "-")
	if len(digits) <= 3 {
		return intPart
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(digits[i : i+3])
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}
