package parser

// 流式抽取：要求模型逐行输出 {"section","content"} 记录
const extractionSystemPrompt = "You are a professional job description analyst. Provide real-time analysis as you process each section."

const extractionUserPromptTemplate = `Analyze the following job description and extract structured information step by step.
Output each section as soon as it is analyzed.

Job Description:
%s

Analyze and output in this order:
1. Job title
2. Job description summary
3. Technical skills (programming languages, frameworks, tools)
4. Domain experience (industry experience, business domain knowledge)
5. Soft skills (communication, leadership, teamwork)
6. Nice-to-have skills (non-essential but preferred)

Output exactly one JSON object per line, using this format and nothing else on the line:
{"section": "title", "content": "extracted title"}
{"section": "description", "content": "extracted description"}
{"section": "technical_skills", "content": ["skill1", "skill2"]}
{"section": "domain_experience", "content": ["exp1", "exp2"]}
{"section": "soft_skills", "content": ["skill1", "skill2"]}
{"section": "nice_to_have", "content": ["bonus1", "bonus2"]}`

// 场景判断：回答中包含 detailed_jd 即视为详细岗位描述
const classifySystemPrompt = "You are a professional job description analyst."

const classifyUserPromptTemplate = `Analyze the following user input and determine if it contains detailed job description information.

User input:
%s

Consider:
1. Level of detail in the input
2. Presence of specific job requirements
3. Whether additional information is needed

Answer with exactly one word: "detailed_jd" or "need_conversation".`

// 追问问题生成
const questionsSystemPrompt = "You are a professional HR specialist who creates structured interview questions."

const questionsUserPromptTemplate = `Generate structured questions to gather the missing job requirements information.
%s
Return only a JSON object that validates against this JSON schema:
%s

Example:
{"session_id": "", "questions_with_options": [{"question": "What is the primary role type for this position?", "options": [{"text": "Technical/Engineering", "value": "technical", "description": "Software development, data engineering, DevOps roles"}], "allow_custom_input": true, "required": true}]}`

const questionsContextTemplate = `
Current information:
%s
`
