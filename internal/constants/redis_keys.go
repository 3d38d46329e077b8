package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// JDModulePrefix 岗位需求模块
	JDModulePrefix = "jd"

	// EntitySession 会话实体
	EntitySession = "session"

	// KeyJDSession 会话数据 (STRING, JSON)
	// 格式: app:jd:session:{sessionID}
	KeyJDSession = AppPrefix + ":" + JDModulePrefix + ":" + EntitySession + ":%s"
)
