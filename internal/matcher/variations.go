package matcher

// VariationTable 规范技能词到别名集合的静态映射。
// 加载后只读，作为不可变配置注入 SkillMatcher，匹配阶段统一小写比较。
type VariationTable map[string][]string

// DefaultVariationTable 返回内置的技能别名表
func DefaultVariationTable() VariationTable {
	return VariationTable{
		// 编程语言
		"python":     {"python", "py", "python3", "python2", "python 3", "python 2"},
		"javascript": {"javascript", "js", "node.js", "nodejs", "node", "ecmascript", "es6", "es5"},
		"java":       {"java", "jvm", "j2ee", "java8", "java11", "java17"},
		"c++":        {"c++", "cpp", "cplusplus", "c plus plus"},
		"c#":         {"c#", "csharp", "c sharp", ".net", "dotnet"},

		// 数据库
		"sql":        {"sql", "structured query language", "tsql", "t-sql", "plsql", "pl/sql"},
		"mongodb":    {"mongodb", "mongo", "mongod", "nosql mongodb"},
		"redis":      {"redis", "redis cache", "redis db", "redis database"},
		"postgresql": {"postgresql", "postgres", "pgsql", "postgre"},
		"mysql":      {"mysql", "my sql", "mariadb"},

		// 框架
		"react":   {"react", "reactjs", "react.js", "react js", "react native"},
		"angular": {"angular", "angularjs", "angular.js", "angular js"},
		"django":  {"django", "django rest", "drf", "django framework"},
		"spring":  {"spring", "spring boot", "springboot", "spring framework"},
		"flask":   {"flask", "flask api", "flask framework"},

		// 云平台
		"aws":   {"aws", "amazon web services", "ec2", "s3", "lambda", "amazon aws"},
		"gcp":   {"gcp", "google cloud", "google cloud platform", "gcloud"},
		"azure": {"azure", "microsoft azure", "ms azure", "windows azure"},

		// 大数据
		"spark":  {"spark", "apache spark", "pyspark", "spark sql"},
		"hadoop": {"hadoop", "hdfs", "mapreduce", "apache hadoop"},
		"kafka":  {"kafka", "apache kafka", "kafka streams"},

		// 机器学习
		"machine learning": {"machine learning", "ml", "scikit-learn", "sklearn", "ml models"},
		"deep learning":    {"deep learning", "dl", "neural networks", "nn", "dnn"},
		"tensorflow":       {"tensorflow", "tf", "tf2", "tensorflow 2"},
		"pytorch":          {"pytorch", "torch", "py torch"},

		// 其他
		"docker":     {"docker", "containers", "containerization", "dockerfile"},
		"kubernetes": {"kubernetes", "k8s", "kubectl", "k8", "container orchestration"},
		"graphql":    {"graphql", "graph ql", "apollo", "graphql api"},
		"rest":       {"rest", "restful", "rest api", "restful api", "rest services"},
		"git":        {"git", "github", "gitlab", "bitbucket", "version control", "vcs"},
		"ci/cd":      {"ci/cd", "cicd", "continuous integration", "continuous deployment", "jenkins", "travis", "circle ci"},
		"agile":      {"agile", "scrum", "kanban", "sprint", "agile methodology"},
	}
}
