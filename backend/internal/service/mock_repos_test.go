package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
	"github.com/zefirkoooo/food-calendar/backend/internal/repository"
	"github.com/zefirkoooo/food-calendar/backend/pkg/cache"
)

// ── 内存数据库 ──
//
// 模拟 PostgreSQL 外键行为：
//   - 删除日菜单：级联删除菜品关联与选餐
//   - 删除菜品：级联删除菜品关联，选餐中的引用置空
//   - 删除用户：级联删除选餐

type memStore struct {
	seq        int
	users      map[string]*model.User
	categories map[string]*model.FoodCategory
	dishes     map[string]*model.Dish
	menus      map[string]*model.DayMenu
	items      []model.DayMenuDish
	selections map[string]*model.UserSelection
	uploads    []*model.MenuUpload

	// 故障注入
	failDishNames map[string]bool
	raceSelection *model.UserSelection
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]*model.User),
		categories:    make(map[string]*model.FoodCategory),
		dishes:        make(map[string]*model.Dish),
		menus:         make(map[string]*model.DayMenu),
		selections:    make(map[string]*model.UserSelection),
		failDishNames: make(map[string]bool),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// repository 组装使用内存实现的 Repository（db 为 nil，Transaction 直接执行）
func (s *memStore) repository() *repository.Repository {
	return &repository.Repository{
		User:       &mockUserRepo{s},
		Category:   &mockCategoryRepo{s},
		Dish:       &mockDishRepo{s},
		DayMenu:    &mockDayMenuRepo{s},
		Selection:  &mockSelectionRepo{s},
		MenuUpload: &mockMenuUploadRepo{s},
	}
}

func inRange(t, from, to time.Time) bool {
	k := dateKey(t)
	return k >= dateKey(from) && k <= dateKey(to)
}

func (s *memStore) deleteMenu(id string) {
	delete(s.menus, id)
	kept := s.items[:0]
	for _, it := range s.items {
		if it.DayMenuID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	for sid, sel := range s.selections {
		if sel.DayMenuID == id {
			delete(s.selections, sid)
		}
	}
}

func (s *memStore) deleteDish(id string) {
	delete(s.dishes, id)
	kept := s.items[:0]
	for _, it := range s.items {
		if it.DishID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	for _, sel := range s.selections {
		for _, c := range model.Courses {
			ref := sel.DishRef(c)
			if *ref != nil && **ref == id {
				*ref = nil
			}
		}
	}
}

// loadMenu 返回带 Items/Dish/Category 预加载的副本
func (s *memStore) loadMenu(m *model.DayMenu) model.DayMenu {
	out := *m
	out.Items = nil
	for _, it := range s.items {
		if it.DayMenuID != m.DayMenuID {
			continue
		}
		cp := it
		if d, ok := s.dishes[it.DishID]; ok {
			dish := *d
			dish.Category = s.categories[d.CategoryID]
			cp.Dish = &dish
		}
		out.Items = append(out.Items, cp)
	}
	sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].Position < out.Items[j].Position })
	return out
}

func (s *memStore) sortedMenus() []*model.DayMenu {
	list := make([]*model.DayMenu, 0, len(s.menus))
	for _, m := range s.menus {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	return list
}

func (s *memStore) loadSelection(sel *model.UserSelection, withMenu bool) model.UserSelection {
	out := *sel
	out.User = s.users[sel.UserID]
	if withMenu {
		if m, ok := s.menus[sel.DayMenuID]; ok {
			menu := *m
			out.DayMenu = &menu
		}
	}
	return out
}

// menuByDate 测试辅助：按日期查找日菜单
func (s *memStore) menuByDate(date time.Time) *model.DayMenu {
	for _, m := range s.menus {
		if dateKey(m.Date) == dateKey(date) {
			return m
		}
	}
	return nil
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.s.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = m.s.nextID("user")
	}
	if user.Role == "" {
		user.Role = model.RoleEmployee
	}
	user.CreatedAt = time.Now()
	cp := *user
	m.s.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	cp := *user
	m.s.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.s.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.users, id)
	for sid, sel := range m.s.selections {
		if sel.UserID == id {
			delete(m.s.selections, sid)
		}
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	all, _ := m.ListAll(ctx)
	total := int64(len(all))
	if offset >= len(all) {
		return []model.User{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) ListAll(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(m.s.users))
	for _, u := range m.s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *mockUserRepo) CountByRole(_ context.Context, role string) (int64, error) {
	var n int64
	for _, u := range m.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// ── Mock CategoryRepository ──

type mockCategoryRepo struct{ s *memStore }

func (m *mockCategoryRepo) GetOrCreate(ctx context.Context, name string) (*model.FoodCategory, error) {
	if c, err := m.GetByName(ctx, name); err == nil {
		return c, nil
	}
	c := &model.FoodCategory{CategoryID: m.s.nextID("cat"), Name: name}
	m.s.categories[c.CategoryID] = c
	return c, nil
}

func (m *mockCategoryRepo) GetByName(_ context.Context, name string) (*model.FoodCategory, error) {
	for _, c := range m.s.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCategoryRepo) List(_ context.Context) ([]model.FoodCategory, error) {
	out := make([]model.FoodCategory, 0, len(m.s.categories))
	for _, c := range m.s.categories {
		out = append(out, *c)
	}
	return out, nil
}

// ── Mock DishRepository ──

type mockDishRepo struct{ s *memStore }

func (m *mockDishRepo) Create(_ context.Context, dish *model.Dish) error {
	if m.s.failDishNames[dish.Name] {
		return errors.New("模拟写入失败")
	}
	dish.DishID = m.s.nextID("dish")
	cp := *dish
	cp.Category = nil
	m.s.dishes[dish.DishID] = &cp
	return nil
}

func (m *mockDishRepo) GetByID(_ context.Context, id string) (*model.Dish, error) {
	d, ok := m.s.dishes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	cp.Category = m.s.categories[d.CategoryID]
	return &cp, nil
}

func (m *mockDishRepo) GetByIDs(_ context.Context, ids []string) ([]model.Dish, error) {
	var out []model.Dish
	for _, id := range ids {
		if d, ok := m.s.dishes[id]; ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDishRepo) Update(_ context.Context, dish *model.Dish) error {
	if _, ok := m.s.dishes[dish.DishID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *dish
	cp.Category = nil
	m.s.dishes[dish.DishID] = &cp
	return nil
}

func (m *mockDishRepo) ListByCategory(_ context.Context, categoryID string) ([]model.Dish, error) {
	var out []model.Dish
	for _, d := range m.s.dishes {
		if d.CategoryID == categoryID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockDishRepo) CompleteNames(_ context.Context, categoryID string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, d := range m.s.dishes {
		if d.CategoryID == categoryID && d.IsCompleteDish && !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d.Name)
		}
	}
	return out, nil
}

func (m *mockDishRepo) DeleteUnreferenced(_ context.Context, from, to time.Time) (int64, error) {
	referenced := make(map[string]bool)
	for _, it := range m.s.items {
		if menu, ok := m.s.menus[it.DayMenuID]; ok && inRange(menu.Date, from, to) {
			referenced[it.DishID] = true
		}
	}
	var n int64
	for id := range m.s.dishes {
		if !referenced[id] {
			m.s.deleteDish(id)
			n++
		}
	}
	return n, nil
}

func (m *mockDishRepo) DeleteAll(_ context.Context) (int64, error) {
	n := int64(len(m.s.dishes))
	for id := range m.s.dishes {
		m.s.deleteDish(id)
	}
	return n, nil
}

// ── Mock DayMenuRepository ──

type mockDayMenuRepo struct{ s *memStore }

func (m *mockDayMenuRepo) Create(_ context.Context, menu *model.DayMenu) error {
	if m.s.menuByDate(menu.Date) != nil {
		return gorm.ErrDuplicatedKey
	}
	menu.DayMenuID = m.s.nextID("day")
	cp := *menu
	cp.Items = nil
	m.s.menus[menu.DayMenuID] = &cp
	return nil
}

func (m *mockDayMenuRepo) GetByID(_ context.Context, id string) (*model.DayMenu, error) {
	menu, ok := m.s.menus[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := m.s.loadMenu(menu)
	return &out, nil
}

func (m *mockDayMenuRepo) GetByDate(_ context.Context, date time.Time) (*model.DayMenu, error) {
	menu := m.s.menuByDate(date)
	if menu == nil {
		return nil, gorm.ErrRecordNotFound
	}
	out := m.s.loadMenu(menu)
	return &out, nil
}

func (m *mockDayMenuRepo) NextAfter(_ context.Context, date time.Time) (*model.DayMenu, error) {
	for _, menu := range m.s.sortedMenus() {
		if dateKey(menu.Date) > dateKey(date) {
			cp := *menu
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDayMenuRepo) ListByDateRange(_ context.Context, from, to time.Time) ([]model.DayMenu, error) {
	var out []model.DayMenu
	for _, menu := range m.s.sortedMenus() {
		if inRange(menu.Date, from, to) {
			out = append(out, m.s.loadMenu(menu))
		}
	}
	return out, nil
}

func (m *mockDayMenuRepo) CountByDateRange(ctx context.Context, from, to time.Time) (int64, error) {
	list, _ := m.ListByDateRange(ctx, from, to)
	return int64(len(list)), nil
}

func (m *mockDayMenuRepo) DeleteByDateRange(_ context.Context, from, to time.Time) (int64, error) {
	var n int64
	for id, menu := range m.s.menus {
		if inRange(menu.Date, from, to) {
			m.s.deleteMenu(id)
			n++
		}
	}
	return n, nil
}

func (m *mockDayMenuRepo) DeleteAll(_ context.Context) (int64, error) {
	n := int64(len(m.s.menus))
	for id := range m.s.menus {
		m.s.deleteMenu(id)
	}
	return n, nil
}

func (m *mockDayMenuRepo) AttachDish(_ context.Context, item *model.DayMenuDish) error {
	for _, it := range m.s.items {
		if it.DayMenuID == item.DayMenuID && it.DishID == item.DishID {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *item
	cp.Dish = nil
	m.s.items = append(m.s.items, cp)
	return nil
}

func (m *mockDayMenuRepo) BatchAttach(ctx context.Context, items []model.DayMenuDish) error {
	for i := range items {
		if err := m.AttachDish(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// ── Mock SelectionRepository ──

type mockSelectionRepo struct{ s *memStore }

func (m *mockSelectionRepo) find(userID, dayMenuID string) *model.UserSelection {
	for _, sel := range m.s.selections {
		if sel.UserID == userID && sel.DayMenuID == dayMenuID {
			return sel
		}
	}
	return nil
}

func (m *mockSelectionRepo) insert(sel *model.UserSelection) error {
	if m.find(sel.UserID, sel.DayMenuID) != nil {
		return gorm.ErrDuplicatedKey
	}
	sel.SelectionID = m.s.nextID("sel")
	cp := *sel
	cp.User, cp.DayMenu = nil, nil
	m.s.selections[sel.SelectionID] = &cp
	return nil
}

func (m *mockSelectionRepo) Create(_ context.Context, sel *model.UserSelection) error {
	// 模拟并发请求抢先插入同一 (user, day)
	if race := m.s.raceSelection; race != nil {
		m.s.raceSelection = nil
		if err := m.insert(race); err != nil {
			return err
		}
	}
	return m.insert(sel)
}

func (m *mockSelectionRepo) Update(_ context.Context, sel *model.UserSelection) error {
	if _, ok := m.s.selections[sel.SelectionID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *sel
	cp.User, cp.DayMenu = nil, nil
	m.s.selections[sel.SelectionID] = &cp
	return nil
}

func (m *mockSelectionRepo) BatchCreate(_ context.Context, sels []model.UserSelection) error {
	for i := range sels {
		if err := m.insert(&sels[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockSelectionRepo) GetByUserAndDay(_ context.Context, userID, dayMenuID string) (*model.UserSelection, error) {
	if sel := m.find(userID, dayMenuID); sel != nil {
		cp := *sel
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSelectionRepo) ListByDayMenu(_ context.Context, dayMenuID string) ([]model.UserSelection, error) {
	var out []model.UserSelection
	for _, sel := range m.s.selections {
		if sel.DayMenuID == dayMenuID {
			out = append(out, *sel)
		}
	}
	return out, nil
}

func (m *mockSelectionRepo) ListByDayMenus(_ context.Context, dayMenuIDs []string) ([]model.UserSelection, error) {
	want := make(map[string]bool, len(dayMenuIDs))
	for _, id := range dayMenuIDs {
		want[id] = true
	}
	var out []model.UserSelection
	for _, sel := range m.s.selections {
		if want[sel.DayMenuID] {
			out = append(out, m.s.loadSelection(sel, false))
		}
	}
	return out, nil
}

func (m *mockSelectionRepo) ListByUserAndDays(_ context.Context, userID string, dayMenuIDs []string) ([]model.UserSelection, error) {
	want := make(map[string]bool, len(dayMenuIDs))
	for _, id := range dayMenuIDs {
		want[id] = true
	}
	var out []model.UserSelection
	for _, sel := range m.s.selections {
		if sel.UserID == userID && want[sel.DayMenuID] {
			out = append(out, *sel)
		}
	}
	return out, nil
}

func (m *mockSelectionRepo) ListAll(_ context.Context) ([]model.UserSelection, error) {
	out := make([]model.UserSelection, 0, len(m.s.selections))
	for _, sel := range m.s.selections {
		out = append(out, m.s.loadSelection(sel, true))
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := dateKey(out[i].DayMenu.Date), dateKey(out[j].DayMenu.Date)
		if di != dj {
			return di < dj
		}
		return out[i].User.Username < out[j].User.Username
	})
	return out, nil
}

func (m *mockSelectionRepo) DeleteByDayMenu(_ context.Context, dayMenuID string) (int64, error) {
	var n int64
	for id, sel := range m.s.selections {
		if sel.DayMenuID == dayMenuID {
			delete(m.s.selections, id)
			n++
		}
	}
	return n, nil
}

func (m *mockSelectionRepo) DeleteAll(_ context.Context) (int64, error) {
	n := int64(len(m.s.selections))
	m.s.selections = make(map[string]*model.UserSelection)
	return n, nil
}

// ── Mock MenuUploadRepository ──

type mockMenuUploadRepo struct{ s *memStore }

func (m *mockMenuUploadRepo) Create(_ context.Context, upload *model.MenuUpload) error {
	upload.UploadID = m.s.nextID("upload")
	cp := *upload
	m.s.uploads = append(m.s.uploads, &cp)
	return nil
}

func (m *mockMenuUploadRepo) GetLatest(_ context.Context) (*model.MenuUpload, error) {
	if len(m.s.uploads) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m.s.uploads[len(m.s.uploads)-1]
	return &cp, nil
}

func (m *mockMenuUploadRepo) GetLatestForWeek(_ context.Context, weekStart time.Time) (*model.MenuUpload, error) {
	for i := len(m.s.uploads) - 1; i >= 0; i-- {
		if dateKey(m.s.uploads[i].WeekStart) == dateKey(weekStart) {
			cp := *m.s.uploads[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMenuUploadRepo) KeepLatest(_ context.Context, n int) (int64, error) {
	if len(m.s.uploads) <= n {
		return 0, nil
	}
	removed := int64(len(m.s.uploads) - n)
	m.s.uploads = m.s.uploads[len(m.s.uploads)-n:]
	return removed, nil
}

// ── 内存缓存 ──

type memCache struct {
	data        map[string][]byte
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) Invalidate(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	c.invalidated = append(c.invalidated, keys...)
	return nil
}

func (c *memCache) InvalidatePrefix(_ context.Context, prefix string) error {
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	c.invalidated = append(c.invalidated, prefix+"*")
	return nil
}
