package types

// Section 表示流式抽取时一条记录所指向的字段名
type Section string

const (
	// SectionTitle 岗位名称
	SectionTitle Section = "title"
	// SectionDescription 岗位描述摘要
	SectionDescription Section = "description"
	// SectionTechnicalSkills 技术技能（必须）
	SectionTechnicalSkills Section = "technical_skills"
	// SectionDomainExperience 行业/领域经验（必须）
	SectionDomainExperience Section = "domain_experience"
	// SectionSoftSkills 软技能（必须）
	SectionSoftSkills Section = "soft_skills"
	// SectionNiceToHave 加分项
	SectionNiceToHave Section = "nice_to_have"
)

// AllSections 按模型输出顺序排列的全部已知字段
var AllSections = []Section{
	SectionTitle,
	SectionDescription,
	SectionTechnicalSkills,
	SectionDomainExperience,
	SectionSoftSkills,
	SectionNiceToHave,
}

// IsKnown 判断字段名是否属于固定的六个字段
func (s Section) IsKnown() bool {
	switch s {
	case SectionTitle, SectionDescription, SectionTechnicalSkills,
		SectionDomainExperience, SectionSoftSkills, SectionNiceToHave:
		return true
	}
	return false
}

// ExpectsText 标题和描述是字符串字段，其余四个是列表字段
func (s Section) ExpectsText() bool {
	return s == SectionTitle || s == SectionDescription
}

// Record 是从模型输出中识别出的一条 {"section": ..., "content": ...} 记录。
// Content 保留 JSON 解码后的原始类型（string、[]interface{} 等），类型校验由累加器完成。
type Record struct {
	Section Section     `json:"section"`
	Content interface{} `json:"content"`
}

// MustHave 必须满足的技能要求
type MustHave struct {
	TechnicalSkills  []string `json:"technical_skills"`
	DomainExperience []string `json:"domain_experience"`
	SoftSkills       []string `json:"soft_skills"`
}

// JobRequirements 岗位要求的结构化结果
type JobRequirements struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	MustHave    MustHave `json:"must_have"`
	NiceToHave  []string `json:"nice_to_have"`
}

// NewJobRequirements 返回所有字段都已初始化为空值的结果（列表字段为非nil的空切片）
func NewJobRequirements() JobRequirements {
	return JobRequirements{
		MustHave: MustHave{
			TechnicalSkills:  []string{},
			DomainExperience: []string{},
			SoftSkills:       []string{},
		},
		NiceToHave: []string{},
	}
}

// Clone 深拷贝，返回值与原值互不影响
func (r JobRequirements) Clone() JobRequirements {
	return JobRequirements{
		Title:       r.Title,
		Description: r.Description,
		MustHave: MustHave{
			TechnicalSkills:  cloneStrings(r.MustHave.TechnicalSkills),
			DomainExperience: cloneStrings(r.MustHave.DomainExperience),
			SoftSkills:       cloneStrings(r.MustHave.SoftSkills),
		},
		NiceToHave: cloneStrings(r.NiceToHave),
	}
}

func cloneStrings(src []string) []string {
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

// ExtractionOutput 最终输出格式，与会话ID一起返回
type ExtractionOutput struct {
	SessionID    string          `json:"session_id"`
	Requirements JobRequirements `json:"requirements"`
}

// Scenario 输入分类结果
type Scenario string

const (
	// ScenarioDetailedJD 输入包含足够详细的岗位描述，直接进入抽取流程
	ScenarioDetailedJD Scenario = "detailed_jd"
	// ScenarioNeedConversation 信息不足，需要向用户追问
	ScenarioNeedConversation Scenario = "need_conversation"
)

// QuestionOption 追问问题的一个可选项
type QuestionOption struct {
	Text        string `json:"text" jsonschema:"description=Label shown to the user"`
	Value       string `json:"value" jsonschema:"description=Machine readable value"`
	Description string `json:"description" jsonschema:"description=Short explanation of the option"`
}

// Question 结构化追问问题
type Question struct {
	Question         string           `json:"question" jsonschema:"description=Question text"`
	Options          []QuestionOption `json:"options" jsonschema:"description=Ordered list of options"`
	AllowCustomInput bool             `json:"allow_custom_input" jsonschema:"description=Whether a free-text answer is accepted"`
	Required         bool             `json:"required" jsonschema:"description=Whether the question must be answered"`
}

// QuestionSet 一组追问问题
type QuestionSet struct {
	SessionID            string     `json:"session_id"`
	QuestionsWithOptions []Question `json:"questions_with_options"`
}
