package answer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

const (
	NoInformationMessage = "К сожалению, в базе знаний клиники нет информации по этому вопросу. Пожалуйста, уточните его у администратора или лечащего врача."
	UnavailableMessage   = "Сервис ответов сейчас недоступен. Пожалуйста, обратитесь к сотрудникам клиники."
	ApologyMessage       = "Извините, не удалось сформировать ответ. Попробуйте позже или обратитесь к сотрудникам клиники."
)

const systemPrompt = `Ты помощник клиники. Ты отвечаешь только на вопросы о правилах клиники и подготовке к процедурам и анализам.
Правила:
- Используй только информацию из приведённого контекста.
- Не ставь диагнозов, не назначай и не оценивай лечение, не давай медицинских прогнозов.
- Указывай источники в виде [n], где n номер блока контекста.
- Если контекста недостаточно для ответа, прямо скажи об этом и посоветуй обратиться к сотрудникам клиники.
- Отвечай кратко и на языке вопроса.`

// SystemPrompt returns the fixed assistant instruction.
func SystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt numbers the grounding fragments in ranked order and appends the question.
func BuildUserPrompt(query string, grounding []knowledgeModel.ScoredFragment) string {
	var b strings.Builder
	b.WriteString("Контекст:\n")
	for i, f := range grounding {
		fmt.Fprintf(&b, "[%d] %s (фрагмент %d)\n%s\n\n", i+1, f.DocumentTitle, f.FragmentIndex, strings.TrimSpace(f.Text))
	}
	b.WriteString("Вопрос: ")
	b.WriteString(strings.TrimSpace(query))
	return b.String()
}

func sourcesOf(grounding []knowledgeModel.ScoredFragment) []knowledgeModel.Source {
	sources := make([]knowledgeModel.Source, len(grounding))
	for i, f := range grounding {
		sources[i] = knowledgeModel.Source{
			DocumentId:    f.DocumentId,
			DocumentTitle: f.DocumentTitle,
			Scope:         f.Scope,
			FragmentIndex: f.FragmentIndex,
		}
	}
	return sources
}

var errEmptyCompletion = errors.New("empty completion")
