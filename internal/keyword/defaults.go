package keyword

// Base lists used when no CSV is available and as seeds for cmd/keywords.
var (
	DefaultDirectQuery = []string{
		"hỏi", "tìm hiểu", "thông tin", "giải thích", "là gì", "tại sao", "như thế nào",
		"dsm-5", "tiêu chuẩn", "chẩn đoán", "rối loạn", "tâm lý", "triệu chứng", "điều trị",
		"phương pháp", "nguyên nhân", "hành vi", "phân loại", "yếu tố", "cách chữa",
		"đặc điểm", "hiệu quả", "liệu pháp", "thống kê", "nghiên cứu", "tác động",
		"phân tích", "đánh giá", "quy trình", "hỗ trợ",
	}

	DefaultEmotion = []string{
		"buồn", "vui", "hạnh phúc", "lo âu", "lo lắng", "stress", "áp lực", "căng thẳng", "mệt mỏi",
		"tức giận", "sợ hãi", "hoang mang", "chán nản", "tự tin", "thất vọng", "hy vọng",
		"sợ sệt", "bồn chồn", "phấn khởi", "u uất", "trầm cảm", "hào hứng", "mất ngủ",
		"kích động", "thư giãn", "buồn chán", "tổn thương", "yêu đời", "cô đơn", "bối rối",
	}

	DefaultPersonal = []string{
		"tôi", "mình", "tớ", "chúng tôi", "bạn tôi", "gia đình tôi", "bản thân",
		"cảm giác của tôi", "tâm trạng tôi", "sức khỏe tôi", "cơ thể tôi", "cuộc sống tôi",
		"ngày của tôi", "tuần của tôi", "tháng của tôi", "năm của tôi", "hôm nay tôi",
		"đêm qua tôi", "sáng nay tôi", "hôm qua tôi", "tôi cảm thấy", "tôi nghĩ",
		"tôi muốn", "tôi cần", "tôi đang", "tôi đã",
	}
)

// Defaults returns the built-in lists as Sets.
func Defaults() Sets {
	return Sets{
		DirectQuery: NewSet(DefaultDirectQuery),
		Emotion:     NewSet(DefaultEmotion),
		Personal:    NewSet(DefaultPersonal),
	}
}

// Default returns the built-in list for k.
func Default(k Kind) []string {
	switch k {
	case KindDirectQuery:
		return DefaultDirectQuery
	case KindEmotion:
		return DefaultEmotion
	case KindPersonal:
		return DefaultPersonal
	}
	return nil
}
