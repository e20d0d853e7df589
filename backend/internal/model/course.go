package model

import "strings"

// Course 日菜单中的菜品栏目，与 FoodCategory 一一对应
type Course string

const (
	CourseSalads      Course = "salads"
	CourseSoups       Course = "soups"
	CourseMainCourses Course = "main_courses"
	CourseSides       Course = "sides"
	CourseBakery      Course = "bakery"
)

// Courses 按菜单展示顺序排列的全部栏目
var Courses = []Course{CourseSalads, CourseSoups, CourseMainCourses, CourseSides, CourseBakery}

var courseCategoryNames = map[Course]string{
	CourseSalads:      "Салаты",
	CourseSoups:       "Супы",
	CourseMainCourses: "Горячие блюда",
	CourseSides:       "Гарниры",
	CourseBakery:      "Выпечка",
}

// CategoryName 栏目对应的规范分类名
func (c Course) CategoryName() string {
	return courseCategoryNames[c]
}

// Valid 是否为已知栏目
func (c Course) Valid() bool {
	_, ok := courseCategoryNames[c]
	return ok
}

// CourseForCategory 根据分类名反查栏目（大小写不敏感）
func CourseForCategory(name string) (Course, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Courses {
		if strings.EqualFold(courseCategoryNames[c], name) {
			return c, true
		}
	}
	return "", false
}
