package composer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/garyellow/tamly-chatbot-go/internal/emotion"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/quiz"
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Disclaimer is appended to every answer the bot composes.
const Disclaimer = "*(Lưu ý: Tôi là chatbot hỗ trợ tâm lý, không phải bác sĩ. Nếu cần, hãy liên hệ chuyên gia tâm lý.)*"

const guidance = "Vui lòng nhập câu hỏi hoặc chia sẻ cảm xúc để tôi hỗ trợ!\n\n" +
	"**Ví dụ câu hỏi trực tiếp**: 'Tiêu chuẩn chẩn đoán rối loạn lo âu theo DSM-5 là gì?'\n" +
	"**Ví dụ yêu cầu câu hỏi trắc nghiệm**: 'Tôi đang cảm thấy buồn, hãy tạo câu hỏi tâm lý cho tôi.'"

// EmptyInputMessage is returned for blank utterances.
const EmptyInputMessage = guidance

// UnclearMessage is returned when no route matches.
const UnclearMessage = "Đầu vào của bạn không rõ ràng. " + guidance

// minAnswerRunes is the length below which generated answers are replaced.
const minAnswerRunes = 50

// maxQuizWords caps the length of an accepted quiz question.
const maxQuizWords = 30

var (
	headerBlock  = regexp.MustCompile(`<\|start_header_id\|>.*?<\|end_header_id\|>`)
	specialToken = regexp.MustCompile(`<\|[a-zA-Z0-9_]+\|>|</?s>|\[/?INST\]`)
	roleLabel    = regexp.MustCompile(`(?im)^\s*(assistant|user|system|trợ lý|người dùng)\s*:\s*`)
	questionHead = regexp.MustCompile(`(?i)^\s*(\*\*)?\s*câu hỏi\s*(\*\*)?\s*:\s*(\*\*)?\s*`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// noInfoPhrases mark generated text that admits it found nothing.
var noInfoPhrases = []string{
	"không tìm thấy thông tin",
	"không có thông tin",
	"không đủ thông tin",
	"tôi không biết",
	"i don't know",
	"no information",
}

// StripArtifacts removes chat-template delimiters and role labels that some
// models leak into their output.
func StripArtifacts(s string) string {
	s = headerBlock.ReplaceAllString(s, "")
	s = specialToken.ReplaceAllString(s, "")
	s = roleLabel.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// withDisclaimer joins non-empty parts with blank lines and appends the disclaimer.
func withDisclaimer(parts ...string) string {
	kept := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	kept = append(kept, Disclaimer)
	return strings.Join(kept, "\n\n")
}

// weakAnswer reports why generated text should be replaced, or "" if usable.
func weakAnswer(s string) string {
	if utf8.RuneCountInString(strings.TrimSpace(s)) < minAnswerRunes {
		return "too_short"
	}
	folded := textnorm.Fold(s)
	for _, p := range noInfoPhrases {
		if strings.Contains(folded, p) {
			return "no_info"
		}
	}
	return ""
}

// cleanQuestion normalizes a generated quiz question for validation.
func cleanQuestion(s string) string {
	s = StripArtifacts(s)
	s = questionHead.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t\r\n\"'“”*")
	return strings.Join(strings.Fields(s), " ")
}

// checkQuestion rejects generated questions that are not a short question
// about topic. Rejections wrap errors.ErrMalformedGeneration.
func checkQuestion(q, topic string) error {
	switch {
	case !strings.HasSuffix(q, "?"):
		return fmt.Errorf("%w: no question mark", apperrors.ErrMalformedGeneration)
	case textnorm.WordCount(q) > maxQuizWords:
		return fmt.Errorf("%w: more than %d words", apperrors.ErrMalformedGeneration, maxQuizWords)
	case !strings.Contains(textnorm.Fold(q), textnorm.Fold(topic)):
		return fmt.Errorf("%w: topic %q missing", apperrors.ErrMalformedGeneration, topic)
	}
	return nil
}

// FallbackQuestion is the quiz question used when generation is unusable.
func FallbackQuestion(topic string) string {
	return fmt.Sprintf("Mức độ bạn cảm thấy %s trong cuộc sống hàng ngày?", topic)
}

// fallbackAnswer builds the three-part templated reply for a severity tier:
// acknowledgment, normalization, then numbered suggestions.
func fallbackAnswer(tag emotion.Tag, question, answer string, sev quiz.Severity) string {
	label := tag.Label()
	ack := fmt.Sprintf("**Vấn đề**: Với câu hỏi '%s', bạn đã chọn '%s'. Cảm ơn bạn đã thành thật với cảm xúc %s của mình.",
		question, answer, label)

	var norm, tips string
	switch sev.Tier() {
	case quiz.Mild:
		norm = "**Cảm nhận**: Mức độ này khá nhẹ và rất nhiều người cũng trải qua như vậy trong cuộc sống hàng ngày. Việc bạn để ý đến cảm xúc của mình đã là một bước rất tốt."
		tips = "**Gợi ý**:\n1. Dành vài phút mỗi tối để ghi lại điều khiến bạn cảm thấy như vậy.\n" +
			"2. Duy trì những thói quen nhỏ giúp bạn thư giãn như đi bộ, nghe nhạc hoặc hít thở sâu."
	case quiz.Severe:
		norm = "**Cảm nhận**: Cảm xúc xuất hiện thường xuyên như vậy có thể khiến bạn mệt mỏi và khó tập trung. Điều đó không có nghĩa là bạn yếu đuối, mà là tâm trí bạn đang cần được quan tâm nhiều hơn."
		tips = "**Gợi ý**:\n1. Chia sẻ với một người bạn tin tưởng hoặc người thân ngay trong tuần này.\n" +
			"2. Giữ nhịp sinh hoạt đều đặn: ngủ đủ giấc, ăn uống điều độ, vận động nhẹ mỗi ngày.\n" +
			"3. Cân nhắc đặt lịch gặp chuyên gia tâm lý để được đánh giá và hỗ trợ phù hợp."
	default:
		norm = "**Cảm nhận**: Thỉnh thoảng có những cảm xúc như vậy là điều bình thường, nhất là khi cuộc sống có nhiều thay đổi. Quan trọng là bạn nhận ra và không phải đối mặt một mình."
		tips = "**Gợi ý**:\n1. Thử viết nhật ký cảm xúc để nhận ra những lúc cảm xúc này xuất hiện.\n" +
			"2. Tập thiền hoặc hít thở chậm 5 phút khi thấy cảm xúc dâng lên.\n" +
			"3. Dành thời gian cho một hoạt động bạn yêu thích mỗi tuần."
	}
	return strings.Join([]string{ack, norm, tips}, "\n\n")
}

// maintenanceAnswer is the templated reply for positive emotions. It keeps
// the same three parts but suggests noticing and sustaining the state.
func maintenanceAnswer(tag emotion.Tag, question, answer string) string {
	ack := fmt.Sprintf("**Vấn đề**: Với câu hỏi '%s', bạn đã chọn '%s'. Thật vui khi nghe bạn đang có cảm xúc %s.",
		question, answer, tag.Label())
	norm := "**Cảm nhận**: Những cảm xúc tích cực là nguồn năng lượng quý giá. Nhận ra điều gì mang lại niềm vui giúp bạn giữ được nó lâu hơn."
	tips := "**Gợi ý**:\n1. Ghi lại những khoảnh khắc hoặc việc làm khiến bạn thấy vui trong ngày.\n" +
		"2. Chia sẻ niềm vui với người thân hoặc bạn bè để lan tỏa năng lượng tích cực.\n" +
		"3. Duy trì thói quen tốt như ngủ đủ giấc, vận động và dành thời gian cho sở thích."
	return strings.Join([]string{ack, norm, tips}, "\n\n")
}
