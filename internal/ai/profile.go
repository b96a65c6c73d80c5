package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Profile is a generated warm-account persona.
type Profile struct {
	Name      string   `json:"name"`
	Bio       string   `json:"bio"`
	Interests []string `json:"interests"`
}

// rolePrompts describes each persona role for the generation prompt.
var rolePrompts = map[string]string{
	"expert":      "Профессионал в своей области, даёт экспертные советы и анализ",
	"observer":    "Активный подписчик каналов, интересуется новостями и контентом",
	"community":   "Вдумчивый участник, задаёт вопросы и анализирует материал",
	"support":     "Позитивный участник, поддерживает авторов и контент",
	"trendsetter": "Следит за трендами, первым реагирует на новое",
}

var jsonBlock = regexp.MustCompile(`\{[\s\S]*\}`)

// GenerateProfile asks the model for a persona (name, bio, interests)
// in strict JSON. Callers fall back to a default persona on any error.
func (c *Client) GenerateProfile(ctx context.Context, role string, interests []string, speechStyle string) (*Profile, error) {
	description, ok := rolePrompts[role]
	if !ok {
		description = rolePrompts["observer"]
	}
	if len(interests) == 0 {
		interests = []string{"общение", "новости", "технологии"}
	}
	if speechStyle == "" {
		speechStyle = "informal"
	}

	prompt := fmt.Sprintf(`Создай профиль для Telegram аккаунта.

Тип персоны: %s
Интересы: %s
Стиль общения: %s

Сгенерируй:
1. Русское имя (имя и фамилия)
2. Краткое био для профиля (до 70 символов)
3. Список из 5 интересов

Формат ответа (строго JSON):
{"name": "Имя Фамилия", "bio": "Краткое био", "interests": ["интерес1", "интерес2", "интерес3", "интерес4", "интерес5"]}`,
		description, strings.Join(interests, ", "), speechStyle)

	raw, err := c.complete(ctx, "You generate realistic Telegram user profiles. Answer with JSON only.", prompt, 300)
	if err != nil {
		return nil, err
	}

	match := jsonBlock.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("ai: no JSON in profile response")
	}

	var profile Profile
	if err := json.Unmarshal([]byte(match), &profile); err != nil {
		return nil, fmt.Errorf("ai: parse profile: %w", err)
	}
	if profile.Name == "" {
		return nil, fmt.Errorf("ai: profile has no name")
	}
	return &profile, nil
}
