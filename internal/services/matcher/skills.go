package matcher

import "strings"

// skillVariants maps spelling variants to a canonical form. Comparison
// happens after lowercasing, so only lowercase keys appear here.
var skillVariants = map[string]string{
	"golang":        "go",
	"js":            "javascript",
	"ts":            "typescript",
	"k8s":           "kubernetes",
	"postgres":      "postgresql",
	"pgsql":         "postgresql",
	"es":            "elasticsearch",
	"mq":            "message queue",
	"rabbit":        "rabbitmq",
	"ml":            "machine learning",
	"dl":            "deep learning",
	"nlp":           "natural language processing",
	"cv":            "computer vision",
	"ai":            "artificial intelligence",
	"node":          "nodejs",
	"node.js":       "nodejs",
	"vue.js":        "vue",
	"vuejs":         "vue",
	"react.js":      "react",
	"reactjs":       "react",
	"springboot":    "spring boot",
	"spring-boot":   "spring boot",
	"springcloud":   "spring cloud",
	"c++":           "cpp",
	"c#":            "csharp",
	".net":          "dotnet",
	"tf":            "tensorflow",
	"py":            "python",
	"ci/cd":         "cicd",
	"devops工程师":     "devops",
	"microservices": "microservice",
}

// bilingualSkills maps common Chinese technology terms to the same
// canonical English form the variant table produces
var bilingualSkills = map[string]string{
	"机器学习":   "machine learning",
	"深度学习":   "deep learning",
	"自然语言处理": "natural language processing",
	"计算机视觉":  "computer vision",
	"人工智能":   "artificial intelligence",
	"数据分析":   "data analysis",
	"数据挖掘":   "data mining",
	"数据仓库":   "data warehouse",
	"大数据":    "big data",
	"微服务":    "microservice",
	"分布式":    "distributed systems",
	"高并发":    "high concurrency",
	"消息队列":   "message queue",
	"容器化":    "containerization",
	"云原生":    "cloud native",
	"云计算":    "cloud computing",
	"前端开发":   "frontend",
	"前端":     "frontend",
	"后端开发":   "backend",
	"后端":     "backend",
	"全栈":     "fullstack",
	"爬虫":     "web scraping",
	"算法":     "algorithms",
	"数据结构":   "data structures",
	"运维":     "operations",
	"测试":     "testing",
	"自动化测试":  "test automation",
	"单元测试":   "unit testing",
	"性能优化":   "performance optimization",
	"架构设计":   "architecture",
	"系统设计":   "system design",
	"缓存":     "caching",
	"数据库":    "database",
	"关系型数据库": "relational database",
	"搜索引擎":   "search engine",
	"推荐系统":   "recommendation system",
	"网络安全":   "security",
	"持续集成":   "cicd",
	"敏捷开发":   "agile",
	"项目管理":   "project management",
	"需求分析":   "requirements analysis",
	"接口开发":   "api development",
	"接口":     "api",
	"小程序":    "mini program",
	"安卓":     "android",
	"苹果":     "ios",
}

// canonicalSkillEntries is the skill dictionary spanning programming
// languages, frameworks, data platforms, cloud services and ML tooling.
// The first element of each group is the canonical entry, the rest are
// aliases that resolve to it.
var canonicalSkillEntries = [][]string{
	// Programming languages
	{"go"}, {"python"}, {"java"}, {"javascript"}, {"typescript"},
	{"cpp", "c plus plus"}, {"csharp"}, {"c"}, {"rust"}, {"ruby"},
	{"php"}, {"kotlin"}, {"swift"}, {"scala"}, {"lua"}, {"perl"},
	{"shell", "bash", "zsh"}, {"sql"},

	// Frontend
	{"react", "react native"}, {"vue"}, {"angular", "angularjs"},
	{"jquery"}, {"webpack"}, {"html", "html5"}, {"css", "css3"},
	{"nodejs"}, {"electron"}, {"flutter"},

	// Backend frameworks and protocols
	{"spring", "spring framework"}, {"spring boot"}, {"spring cloud"},
	{"django"}, {"flask"}, {"fastapi"}, {"gin"}, {"grpc", "grpc-go"},
	{"graphql"}, {"rest", "restful"}, {"websocket"}, {"mybatis"},
	{"netty"}, {"dubbo"},

	// Data platforms
	{"mysql", "mariadb"}, {"postgresql"}, {"sql server", "mssql", "ms sql", "sqlserver"},
	{"oracle"}, {"mongodb", "mongo"}, {"redis"}, {"elasticsearch"},
	{"kafka", "apache kafka"}, {"rabbitmq"}, {"rocketmq"},
	{"hadoop"}, {"spark", "apache spark", "pyspark"}, {"flink"},
	{"hive"}, {"clickhouse"}, {"hbase"}, {"sqlite"}, {"memcached"},

	// Cloud and infrastructure
	{"aws", "amazon web services"}, {"azure", "microsoft azure"},
	{"google cloud", "gcp"}, {"alibaba cloud", "aliyun"},
	{"docker", "docker compose"}, {"kubernetes"}, {"terraform"},
	{"ansible"}, {"jenkins"}, {"git", "github", "gitlab"},
	{"linux", "centos", "ubuntu"}, {"nginx"}, {"prometheus"},
	{"grafana"}, {"etcd"}, {"consul"}, {"zookeeper"}, {"istio"},

	// ML tooling
	{"tensorflow"}, {"pytorch", "torch"}, {"scikit-learn", "sklearn", "scikit learn"},
	{"pandas"}, {"numpy"}, {"opencv"}, {"hugging face", "huggingface", "transformers"},
	{"machine learning"}, {"deep learning"}, {"computer vision"},
	{"natural language processing"}, {"llm", "large language model"},

	// Cross-cutting
	{"microservice"}, {"message queue"}, {"cicd"}, {"distributed systems"},
	{"high concurrency"}, {"caching"}, {"api"},
}

// canonicalSkills resolves dictionary aliases to their canonical entry
var canonicalSkills = make(map[string]string)

func init() {
	for _, entry := range canonicalSkillEntries {
		for _, alias := range entry {
			canonicalSkills[alias] = entry[0]
		}
	}
}

// NormalizeSkill maps a raw skill string to its canonical comparison
// form, expanding through the bilingual table, the variant groups and the
// canonical dictionary in that order.
func NormalizeSkill(skill string) string {
	s := strings.ToLower(strings.TrimSpace(skill))
	if s == "" {
		return ""
	}
	if canonical, ok := bilingualSkills[s]; ok {
		s = canonical
	}
	if canonical, ok := skillVariants[s]; ok {
		s = canonical
	}
	if canonical, ok := canonicalSkills[s]; ok {
		return canonical
	}
	return s
}

// MatchSkills scores how well the resume covers the job's skill list.
// The base is the covered fraction of the job's skills; a small per-match
// bonus (capped at 0.25) rewards breadth, and the result is clamped to 1.
// Jobs listing no skills score a neutral 0.5. The returned list holds the
// job's original skill strings that matched, for explainability.
func MatchSkills(jobSkills, resumeSkills []string) (float64, []string) {
	jobSet := make(map[string]string) // canonical -> original
	for _, skill := range jobSkills {
		if canonical := NormalizeSkill(skill); canonical != "" {
			if _, dup := jobSet[canonical]; !dup {
				jobSet[canonical] = skill
			}
		}
	}
	if len(jobSet) == 0 {
		return 0.5, nil
	}

	resumeSet := make(map[string]struct{})
	for _, skill := range resumeSkills {
		if canonical := NormalizeSkill(skill); canonical != "" {
			resumeSet[canonical] = struct{}{}
		}
	}

	var matched []string
	for canonical, original := range jobSet {
		if _, ok := resumeSet[canonical]; ok {
			matched = append(matched, original)
		}
	}

	ratio := float64(len(matched)) / float64(len(jobSet))
	bonus := 0.05 * float64(len(matched))
	if bonus > 0.25 {
		bonus = 0.25
	}

	score := ratio + bonus
	if score > 1 {
		score = 1
	}
	return score, matched
}
