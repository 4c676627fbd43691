package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// rewriteContent applies replacements to the literal strings shown by each
// page's content stream and writes the result to out. It returns the number of
// occurrences replaced. Text split across several string operands, hex strings
// and fonts with multi-byte encodings are left alone.
func rewriteContent(ctx context.Context, in, out string, replacements []Replacement, conf *model.Configuration) (int, error) {
	pdf, err := api.ReadContextFile(in)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	pdf.Configuration = conf

	total := 0
	for pageNr := 1; pageNr <= pdf.PageCount && len(replacements) > 0; pageNr++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		r, err := pdfcpu.ExtractPageContent(pdf, pageNr)
		if err != nil {
			return 0, fmt.Errorf("failed to read content of page %d: %w", pageNr, err)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return 0, fmt.Errorf("failed to read content of page %d: %w", pageNr, err)
		}

		updated, n := replaceLiterals(content, replacements)
		if n == 0 {
			continue
		}

		d, _, _, err := pdf.PageDict(pageNr, false)
		if err != nil {
			return 0, fmt.Errorf("failed to load page %d: %w", pageNr, err)
		}
		sd, err := pdf.NewStreamDictForBuf(updated)
		if err != nil {
			return 0, fmt.Errorf("failed to build content of page %d: %w", pageNr, err)
		}
		if err := sd.Encode(); err != nil {
			return 0, fmt.Errorf("failed to encode content of page %d: %w", pageNr, err)
		}
		ir, err := pdf.IndRefForNewObject(*sd)
		if err != nil {
			return 0, fmt.Errorf("failed to store content of page %d: %w", pageNr, err)
		}
		d.Update("Contents", *ir)
		total += n
	}

	if err := api.WriteContextFile(pdf, out); err != nil {
		return 0, fmt.Errorf("failed to write PDF: %w", err)
	}
	return total, nil
}

// replaceLiterals rewrites every (literal string) operand of a content stream.
func replaceLiterals(content []byte, replacements []Replacement) ([]byte, int) {
	var out bytes.Buffer
	out.Grow(len(content))
	count := 0

	for i := 0; i < len(content); {
		c := content[i]
		if c == '%' {
			end := bytes.IndexAny(content[i:], "\r\n")
			if end < 0 {
				end = len(content) - i
			}
			out.Write(content[i : i+end])
			i += end
			continue
		}
		if c != '(' {
			out.WriteByte(c)
			i++
			continue
		}

		raw, next, ok := scanLiteral(content, i)
		if !ok {
			out.Write(content[i:])
			break
		}
		text := decodeLiteral(raw)
		n := 0
		for _, r := range replacements {
			if r.Old == "" {
				continue
			}
			if k := strings.Count(text, r.Old); k > 0 {
				text = strings.ReplaceAll(text, r.Old, r.New)
				n += k
			}
		}
		if n == 0 {
			out.Write(content[i:next])
		} else {
			out.WriteByte('(')
			out.Write(encodeLiteral(text))
			out.WriteByte(')')
			count += n
		}
		i = next
	}
	return out.Bytes(), count
}

// scanLiteral returns the raw bytes between the parenthesis at start and its
// balancing close, and the index just past the close.
func scanLiteral(content []byte, start int) ([]byte, int, bool) {
	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return content[start+1 : i], i + 1, true
			}
		}
	}
	return nil, 0, false
}

// decodeLiteral resolves escapes and maps each byte to the rune of the same
// value.
func decodeLiteral(raw []byte) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteRune(rune(c))
			continue
		}
		i++
		switch e := raw[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		default:
			if e >= '0' && e <= '7' {
				v := 0
				j := 0
				for ; j < 3 && i+j < len(raw) && raw[i+j] >= '0' && raw[i+j] <= '7'; j++ {
					v = v*8 + int(raw[i+j]-'0')
				}
				i += j - 1
				b.WriteRune(rune(v & 0xff))
				continue
			}
			b.WriteRune(rune(e))
		}
	}
	return b.String()
}

func encodeLiteral(text string) []byte {
	var b bytes.Buffer
	for _, r := range text {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteByte(byte(r))
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r > 0xff:
			b.WriteByte('?')
		case r < 0x20 || r >= 0x7f:
			fmt.Fprintf(&b, "\\%03o", r)
		default:
			b.WriteByte(byte(r))
		}
	}
	return b.Bytes()
}
