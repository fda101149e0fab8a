package composer

import (
	"fmt"

	"github.com/garyellow/tamly-chatbot-go/internal/emotion"
	"github.com/garyellow/tamly-chatbot-go/internal/quiz"
)

func quizQuery(topic, utterance string) string {
	return fmt.Sprintf(
		"Dựa trên tài liệu, tạo một câu hỏi trắc nghiệm về tâm lý với 5 lựa chọn mức độ từ 'Không bao giờ' đến 'Luôn luôn' liên quan đến '%s'. "+
			"Người dùng vừa chia sẻ: \"%s\". "+
			"Câu hỏi phải cụ thể, đồng cảm, phù hợp với vai trò bác sĩ tâm lý học, dưới 30 từ, có chứa từ '%s' và kết thúc bằng dấu '?'. "+
			"Chỉ trả về đúng một câu hỏi, không kèm các lựa chọn hay giải thích.",
		topic, utterance, topic)
}

func criteriaQuery(tag emotion.Tag, question, answer string, sev quiz.Severity) string {
	return fmt.Sprintf(
		"Người dùng đang cảm thấy %s. Với câu hỏi '%s', họ trả lời '%s' (mức độ %s). "+
			"Dựa trên tiêu chuẩn DSM-5 trong tài liệu, hãy giải thích ngắn gọn ý nghĩa của mức độ này, "+
			"khi nào nên tìm đến chuyên gia, và đưa ra 2-3 gợi ý tự chăm sóc cụ thể, được đánh số. "+
			"Không đưa ra chẩn đoán.",
		tag.Label(), question, answer, sev.Vietnamese())
}

func maintenanceQuery(tag emotion.Tag, question, answer string) string {
	return fmt.Sprintf(
		"Người dùng đang cảm thấy %s. Với câu hỏi '%s', họ trả lời '%s'. "+
			"Hãy giải thích ý nghĩa của trạng thái tích cực này đối với sức khỏe tinh thần "+
			"và đưa ra 2-3 gợi ý cụ thể, được đánh số, để duy trì nó lâu dài.",
		tag.Label(), question, answer)
}
