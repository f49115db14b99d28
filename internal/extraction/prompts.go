package extraction

import "strings"

// Categories the model is asked to choose from.
var Categories = []string{
	"餐饮", "交通出行", "日用品", "娱乐", "医疗", "教育",
	"住房", "通讯", "服饰", "旅行", "网购", "其他",
}

// systemPrompt fixes the output contract for every extraction call.
var systemPrompt = "你是一个智能账单/流水解析与分类助手。用户会给出任意格式的文本（可能是 PDF OCR 行、Excel 原始表格转为文本、混合中英文）。\n" +
	"任务：识别交易并为每条交易分类。\n" +
	"输出严格 JSON：{ \"transactions\": [ { \"date\": \"YYYY-MM-DD\", \"description\": string, \"merchant\": string|null, " +
	"\"amount\": number, \"currency\": string|null, \"type\": \"expense\"|\"income\", \"category\": string, \"categoryScore\": number } ] }。\n" +
	"分类使用常见消费分类（" + strings.Join(Categories, ", ") + "）。\n" +
	"规则：\n" +
	"1. date 必须是 YYYY-MM-DD。不确定则跳过该行。\n" +
	"2. amount：支出为正数；若原始金额有+/-判断收入支出，收入标记 type=income。\n" +
	"3. currency 若出现 人民币, RMB, 元 统一为 CNY。缺省时设为 CNY。\n" +
	"4. categoryScore 范围 0-1，表示分类置信度。无法判断时给 0.4 且 category=其他。\n" +
	"5. 合并多余空格，description 保留原意即可。\n" +
	"6. 只输出 JSON，不要任何解释文字，不要使用 Markdown 代码块。"

// SystemPrompt returns the extraction instruction prompt.
func SystemPrompt() string {
	return systemPrompt
}
