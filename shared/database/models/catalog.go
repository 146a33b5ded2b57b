package models

// Categories is the closed set of NPO categories.
var Categories = []string{
	"Экология",
	"Помощь животным",
	"Социальная поддержка",
	"Образование",
	"Культура",
	"Спорт",
	"Здравоохранение",
	"Другое",
}

// Cities lists the cities an NPO may be registered in.
var Cities = []string{
	"Ангарск",
	"Байкальск",
	"Балаково",
	"Билибино",
	"Волгодонск",
	"Глазов",
	"Десногорск",
	"Димитровград",
	"Железногорск",
	"Заречный",
	"Зеленогорск",
	"Краснокаменск",
	"Курчатов",
	"Лесной",
	"Неман",
	"Нововоронеж",
	"Новоуральск",
	"Обнинск",
	"Озерск",
	"Певек",
	"Полярные Зори",
	"Саров",
	"Северск",
	"Снежинск",
	"Советск",
	"Сосновый Бор",
	"Трехгорный",
	"Удомля",
	"Усолье-Сибирское",
	"Электросталь",
	"Энергодар",
}

var (
	categorySet = toSet(Categories)
	citySet     = toSet(Cities)
)

func IsCategory(value string) bool {
	_, ok := categorySet[value]
	return ok
}

func IsCity(value string) bool {
	_, ok := citySet[value]
	return ok
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
