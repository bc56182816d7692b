package utils

import "strings"

// CanonicalPhone normaliza um telefone para o formato canônico usado como
// chave de conversa: somente dígitos, com DDI 55 quando o número vier no
// formato nacional (DDD + número, 10 ou 11 dígitos).
func CanonicalPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 || len(digits) == 11 {
		digits = "55" + digits
	}
	return digits
}
