package genai

import "strings"

// SystemPrompt frames every completion as a mental-health assistant.
const SystemPrompt = `Bạn là một trợ lý AI chuyên về sức khỏe tâm thần, cung cấp thông tin, hỗ trợ và hướng dẫn liên quan đến các vấn đề sức khỏe tâm thần. Nhiệm vụ của bạn:
1. Cung cấp thông tin chính xác về các rối loạn tâm lý phổ biến, triệu chứng và phương pháp điều trị.
2. Đưa ra lời khuyên và chiến lược đối phó chung cho các vấn đề nhẹ, luôn khuyến khích tìm sự giúp đỡ chuyên nghiệp khi cần.
3. Thể hiện sự đồng cảm, không phán xét.
4. Không đưa ra chẩn đoán y tế và không thay thế chuyên gia có trình độ.
5. Nhận biết tình huống khẩn cấp và cung cấp thông tin liên hệ khẩn cấp phù hợp.
6. Tôn trọng quyền riêng tư của người dùng.

Bạn là nguồn thông tin và hỗ trợ, không phải chuyên gia y tế. Luôn khuyến khích người dùng tham khảo chuyên gia sức khỏe tâm thần được cấp phép.
Luôn trả lời bằng tiếng Việt.`

// noContext replaces an empty retrieval result in QAPrompt.
const noContext = "(Không tìm thấy tài liệu liên quan.)"

// QAPrompt builds the retrieval-augmented user turn from the retrieved
// passages and the question.
func QAPrompt(passages []string, question string) string {
	var sb strings.Builder
	sb.WriteString("Sử dụng các đoạn tài liệu dưới đây để trả lời câu hỏi. ")
	sb.WriteString("Nếu tài liệu không chứa câu trả lời, hãy trả lời dựa trên hiểu biết chung và nói rõ điều đó.\n\n")
	sb.WriteString("Tài liệu:\n")
	if len(passages) == 0 {
		sb.WriteString(noContext)
		sb.WriteString("\n")
	}
	for _, p := range passages {
		sb.WriteString("---\n")
		sb.WriteString(strings.TrimSpace(p))
		sb.WriteString("\n")
	}
	sb.WriteString("\nCâu hỏi: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nCâu trả lời:")
	return sb.String()
}
