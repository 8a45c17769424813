// Package cli реализует инструмент командной строки Itemsvc.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Itemsvc API.
// Работает через HTTP и не импортирует internal/api; типы ответов
// дублируются в client.go. Исключение — events watch, который читает
// события товаров из RabbitMQ через internal/mq.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Itemsvc API. Инкапсулирует HTTP-запросы,
// парсинг ответов и ошибок ({"detail", "code"} → *APIError).
//
//	client := cli.NewClient("http://localhost:8000")
//	list, err := client.ListItems()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error/Info) — в stderr.
// Это позволяет использовать pipe: itemsvc items list --json | jq .
//
// ## Commands
//
//   - items: list, create, show, update, delete
//   - simulate: slow, error
//   - info, health
//   - loadgen — прогон всех endpoints для генерации метрик
//   - events: watch
//
// Каждая группа создаётся через фабричную функцию (NewItemsCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
