package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signamoz/signa/internal/gesture"
)

const (
	handsExcerpt = 500
	poseExcerpt  = 300
	// maxVocabulary bounds the known-word hint so prompts stay small.
	maxVocabulary = 60
)

const systemPrompt = `És um intérprete de línguas de sinais. Recebes landmarks do MediaPipe Holistic (mãos e pose) de um único instante.

Regras:
- Responde com UMA única palavra em português, em minúsculas, sem pontuação nem explicações.
- As mãos são a informação principal; a pose só ajuda a situar as mãos no corpo.
- Mão aberta costuma indicar "olá" ou "obrigado"; mão junto à boca "comer" ou "beber"; mão sobre o peito "amor"; mãos em telhado "casa"; mãos abertas estendidas "ajuda".
- Se as mãos estiverem ausentes, incompletas ou não corresponderem a nenhum sinal conhecido, responde "desconhecido".
- Não inventes sinais.

Exemplo de resposta válida: olá`

// userPrompt renders the per-frame request. Landmark JSON is cut to a fixed
// number of characters to bound token usage.
func userPrompt(p gesture.Payload, vocabulary []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Língua: %s\n", p.Language.Label())
	if len(vocabulary) > 0 {
		if len(vocabulary) > maxVocabulary {
			vocabulary = vocabulary[:maxVocabulary]
		}
		fmt.Fprintf(&b, "Sinais conhecidos: %s\n", strings.Join(vocabulary, ", "))
	}
	fmt.Fprintf(&b, "\nMÃOS: %s\n", excerpt(p.Hands, len(p.Hands) > 0, handsExcerpt))
	fmt.Fprintf(&b, "POSE: %s\n\n", excerpt(p.Pose, len(p.Pose) > 0, poseExcerpt))
	b.WriteString("Palavra:")
	return b.String()
}

func excerpt(v any, present bool, limit int) string {
	if !present {
		return "Nenhuma"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "Nenhuma"
	}
	if len(data) > limit {
		data = data[:limit]
	}
	return string(data)
}

// visionPrompt asks a vision model to name the sign in a photo.
func visionPrompt(lang gesture.Language) string {
	return fmt.Sprintf(`Identifica o sinal de %s mostrado nesta imagem.

Observa primeiro as mãos: forma, orientação e posição em relação ao rosto e ao peito.
Responde só com uma destas palavras, em minúsculas: %s.
Se não houver um sinal claro, ou as mãos estiverem em repouso, responde "%s".`,
		lang.Label(), strings.Join(VisionWords, ", "), Unknown)
}
