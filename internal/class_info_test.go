package nativeclass

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ClassInfoContainer", func() {
	var e Engine

	BeforeEach(func() {
		e = CreateEngine(NewConfig())
	})

	AfterEach(func() {
		e.Dispose()
	})

	When("registering classes", func() {
		It("rejects a canonical name that is already registered", func() {
			name := uniqueClassName("Duplicate")
			registerCounter(name)

			Expect(IsRegistered(name)).To(BeTrue())
			Expect(func() {
				registerCounter(name)
			}).To(PanicWith(MatchError(ErrDuplicateClass)))
		})

		It("rejects missing input", func() {
			Expect(func() {
				RegisterClass("", func(*ClassInfo) {}, createCounter, 0)
			}).To(PanicWith(MatchError(ContainSubstring("canonical name cannot be empty"))))

			Expect(func() {
				RegisterClass(uniqueClassName("NoCreator"), func(*ClassInfo) {}, nil, 0)
			}).To(Panic())
		})

		It("keeps the recipe of the class", func() {
			name := uniqueClassName("Recipe")
			container := RegisterClass(name, func(*ClassInfo) {}, createCounter, 24, WithCreationPolicy(CreationPolicyNativeOnly))

			Expect(container.CanonicalName()).To(Equal(name))
			Expect(container.Size()).To(Equal(uintptr(24)))
			Expect(container.CreationPolicy()).To(Equal(CreationPolicyNativeOnly))

			found, ok := LookupClass(name)
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(container))
			Expect(RegisteredClasses()).To(ContainElement(name))
		})

		It("reports unknown classes", func() {
			_, ok := LookupClass("DoesNotExist")
			Expect(ok).To(BeFalse())

			_, err := e.ClassInfo("DoesNotExist")
			Expect(err).To(MatchError(ErrClassNotFound))
		})
	})

	When("a class is used by engines", func() {
		var name string

		BeforeEach(func() {
			name = uniqueClassName("Counter")
			registerCounter(name)
		})

		It("creates the ClassInfo once per engine", func() {
			first, err := e.ClassInfo(name)
			Expect(err).To(BeNil())
			second, err := e.ClassInfo(name)
			Expect(err).To(BeNil())

			Expect(second).To(BeIdenticalTo(first))
			Expect(first.State()).To(Equal(ClassStateReady))
			Expect(first.Engine()).To(BeIdenticalTo(e))
			Expect(first.CanonicalName()).To(Equal(name))
		})

		It("keeps engines independent", func() {
			other := CreateEngine(NewConfig())
			defer other.Dispose()

			infoA, err := e.ClassInfo(name)
			Expect(err).To(BeNil())
			infoB, err := other.ClassInfo(name)
			Expect(err).To(BeNil())

			Expect(infoA).ToNot(BeIdenticalTo(infoB))
			Expect(infoA.FunctionTemplate()).ToNot(BeIdenticalTo(infoB.FunctionTemplate()))

			err = infoA.FunctionTemplate().SetPrototypeMethod("extra", func(call goja.FunctionCall) goja.Value {
				return e.Runtime().ToValue("extra")
			})
			Expect(err).To(BeNil())

			Expect(e.ExposeClass(name)).To(Succeed())
			Expect(other.ExposeClass(name)).To(Succeed())

			Expect(run(e, "new "+name+"(1).extra()").Export()).To(Equal("extra"))
			Expect(run(other, "typeof new "+name+"(1).extra").Export()).To(Equal("undefined"))

			container, _ := LookupClass(name)
			Expect(container.Engines()).To(Equal([]EngineID{e.ID(), other.ID()}))
		})

		It("runs the initializer once under concurrent requests", func() {
			var runs atomic.Int32
			concurrent := uniqueClassName("Concurrent")
			RegisterClass(concurrent, func(info *ClassInfo) {
				runs.Add(1)
			}, createCounter, 0)

			var wg sync.WaitGroup
			infos := make([]*ClassInfo, 8)
			for i := range infos {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					info, err := e.ClassInfo(concurrent)
					Expect(err).To(BeNil())
					infos[i] = info
				}(i)
			}
			wg.Wait()

			Expect(runs.Load()).To(Equal(int32(1)))
			for _, info := range infos {
				Expect(info).To(BeIdenticalTo(infos[0]))
			}
		})

		It("tears down the ClassInfo when the engine is disposed", func() {
			other := CreateEngine(NewConfig())
			info, err := other.ClassInfo(name)
			Expect(err).To(BeNil())
			kept, err := e.ClassInfo(name)
			Expect(err).To(BeNil())

			other.Dispose()

			Expect(info.State()).To(Equal(ClassStateTornDown))
			container, _ := LookupClass(name)
			Expect(container.Engines()).To(Equal([]EngineID{e.ID()}))
			Expect(func() {
				info.Constructor()
			}).To(PanicWith(MatchError(ErrTornDown)))

			_, err = other.ClassInfo(name)
			Expect(err).To(MatchError(ErrTornDown))

			Expect(kept.State()).To(Equal(ClassStateReady))
			Expect(e.ExposeClass(name)).To(Succeed())
			Expect(run(e, "new "+name+"(2).inc()").Export()).To(Equal(int64(3)))
		})

		It("tears down while another goroutine is constructing instances", func() {
			busy := CreateEngine(NewConfig())
			Expect(busy.ExposeClass(name)).To(Succeed())
			info, err := busy.ClassInfo(name)
			Expect(err).To(BeNil())

			started := make(chan struct{})
			Expect(busy.Runtime().Set("started", func() { close(started) })).To(Succeed())

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := busy.RunString(ctx, "started(); for (;;) { new "+name+"(1).inc() }")
				done <- err
			}()

			Eventually(started).Should(BeClosed())
			time.Sleep(20 * time.Millisecond)
			busy.Dispose()

			var runErr error
			Eventually(done, 5*time.Second).Should(Receive(&runErr))
			Expect(runErr).ToNot(BeNil())
			Expect(info.State()).To(Equal(ClassStateTornDown))
		})
	})
})

var _ = Describe("ClassInfo", func() {
	var e Engine

	BeforeEach(func() {
		e = CreateEngine(NewConfig())
	})

	AfterEach(func() {
		e.Dispose()
	})

	It("binds constructor, methods and accessors", func() {
		name := uniqueClassName("Counter")
		registerCounter(name)
		Expect(e.ExposeClass(name)).To(Succeed())

		value := run(e, `
			const c = new `+name+`(10);
			c.inc();
			c.value = c.value + 5;
			c.inc();
			[c.value, c instanceof `+name+`, Object.prototype.toString.call(c), `+name+`.name];
		`)
		Expect(value.Export()).To(Equal([]any{int64(17), true, "[object " + name + "]", name}))
	})

	It("runs the constructor after the native object is associated", func() {
		var steps []string
		var constructed NativeObject

		name := uniqueClassName("Ordered")
		RegisterClass(name, func(info *ClassInfo) {
			info.RegisterConstructor(func(obj NativeObject, call goja.FunctionCall) {
				steps = append(steps, "constructor")
				Expect(obj.ClassInfo()).To(BeIdenticalTo(info))
				Expect(obj.JSObject()).ToNot(BeNil())
				Expect(obj.JSObject().SameAs(call.This.(*goja.Object))).To(BeTrue())
				constructed = obj
			})
		}, func(info *ClassInfo, jsObject *goja.Object) NativeObject {
			steps = append(steps, "creator")
			return &counter{}
		}, 0)
		Expect(e.ExposeClass(name)).To(Succeed())

		value := run(e, "new "+name+"()")
		Expect(steps).To(Equal([]string{"creator", "constructor"}))

		obj, ok := Unwrap[*counter](value)
		Expect(ok).To(BeTrue())
		Expect(obj).To(BeIdenticalTo(constructed))
	})

	It("uses the last registered constructor", func() {
		name := uniqueClassName("Replaced")
		RegisterClass(name, func(info *ClassInfo) {
			info.RegisterConstructor(Constructor(func(c *counter, call goja.FunctionCall) {
				c.value = 1
			}))
			info.RegisterConstructor(Constructor(func(c *counter, call goja.FunctionCall) {
				c.value = 2
			}))
		}, createCounter, 0)

		obj, err := e.NewObject(name)
		Expect(err).To(BeNil())
		Expect(obj.(*counter).value).To(Equal(int64(2)))
	})

	It("installs a no-op constructor when none was registered", func() {
		name := uniqueClassName("Plain")
		RegisterClass(name, func(info *ClassInfo) {}, createCounter, 0)
		Expect(e.ExposeClass(name)).To(Succeed())

		_, ok := Unwrap[*counter](run(e, "new "+name+"()"))
		Expect(ok).To(BeTrue())
	})

	It("replaces a method registered twice", func() {
		name := uniqueClassName("Overwrite")
		RegisterClass(name, func(info *ClassInfo) {
			info.RegisterMethod("m", func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value {
				return info.Engine().Runtime().ToValue(1)
			})
			info.RegisterMethod("m", func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value {
				return info.Engine().Runtime().ToValue(2)
			})
		}, createCounter, 0)
		Expect(e.ExposeClass(name)).To(Succeed())

		Expect(run(e, "new "+name+"().m()").Export()).To(Equal(int64(2)))
	})

	It("passes the registered name to the callback", func() {
		name := uniqueClassName("Aliased")
		RegisterClass(name, func(info *ClassInfo) {
			echo := func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value {
				return info.Engine().Runtime().ToValue(methodName)
			}
			info.RegisterMethod("first", echo)
			info.RegisterMethod("second", echo)
		}, createCounter, 0)
		Expect(e.ExposeClass(name)).To(Succeed())

		Expect(run(e, "const o = new "+name+"(); o.first() + ',' + o.second()").Export()).To(Equal("first,second"))
	})

	When("an accessor has no setter", func() {
		var name string

		BeforeEach(func() {
			name = uniqueClassName("ReadOnly")
			RegisterClass(name, func(info *ClassInfo) {
				info.RegisterAccessor("answer", func(obj NativeObject, propertyName string) goja.Value {
					return info.Engine().Runtime().ToValue(42)
				}, nil)
				info.RegisterAccessor("forced", func(obj NativeObject, propertyName string) goja.Value {
					return info.Engine().Runtime().ToValue(1)
				}, func(obj NativeObject, propertyName string, value goja.Value) {
					Fail("setter of a read-only accessor must not be installed")
				}, PropertyAttributeReadOnly, PropertyAttributeDontEnum)
			}, createCounter, 0)
			Expect(e.ExposeClass(name)).To(Succeed())
		})

		It("ignores assignments in sloppy mode", func() {
			value := run(e, "var o = new "+name+"(); o.answer = 1; o.forced = 2; [o.answer, o.forced]")
			Expect(value.Export()).To(Equal([]any{int64(42), int64(1)}))
		})

		It("throws on assignment in strict mode", func() {
			_, err := e.RunString(ctx, "'use strict'; const o = new "+name+"(); o.answer = 1;")
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("TypeError"))
		})

		It("honors DontEnum", func() {
			value := run(e, "const keys = []; for (const k in new "+name+"()) { keys.push(k) }; keys")
			Expect(value.Export()).To(Equal([]any{"answer"}))
		})
	})

	It("installs static methods on the constructor", func() {
		name := uniqueClassName("Static")
		RegisterClass(name, func(info *ClassInfo) {
			info.RegisterConstructor(Constructor(func(c *counter, call goja.FunctionCall) {
				c.value = call.Argument(0).ToInteger()
			}))
			info.RegisterStaticMethod("of", func(info *ClassInfo, methodName string, call goja.FunctionCall) goja.Value {
				obj, err := info.NewInstance(call.Argument(0))
				Expect(err).To(BeNil())
				return ValueOf(obj)
			})
		}, createCounter, 0)
		Expect(e.ExposeClass(name)).To(Succeed())

		value := run(e, name+".of(7)")
		obj, ok := Unwrap[*counter](value)
		Expect(ok).To(BeTrue())
		Expect(obj.value).To(Equal(int64(7)))
	})

	It("faults on registration outside of the initializer", func() {
		name := uniqueClassName("Late")
		registerCounter(name)

		info, err := e.ClassInfo(name)
		Expect(err).To(BeNil())

		Expect(func() {
			info.RegisterMethod("late", func(NativeObject, string, goja.FunctionCall) goja.Value { return nil })
		}).To(PanicWith(MatchError(ErrNotReady)))
		Expect(func() {
			info.RegisterConstructor(func(NativeObject, goja.FunctionCall) {})
		}).To(PanicWith(MatchError(ErrNotReady)))
	})

	It("faults when the template or constructor is requested too early", func() {
		name := uniqueClassName("Early")
		RegisterClass(name, func(info *ClassInfo) {
			Expect(info.State()).To(Equal(ClassStateInitializing))
			Expect(func() {
				info.FunctionTemplate()
			}).To(PanicWith(MatchError(ErrNotReady)))

			info.RegisterConstructor(func(NativeObject, goja.FunctionCall) {})
			Expect(info.FunctionTemplate()).ToNot(BeNil())

			Expect(func() {
				info.Constructor()
			}).To(PanicWith(MatchError(ErrNotReady)))
		}, createCounter, 0)

		info, err := e.ClassInfo(name)
		Expect(err).To(BeNil())
		Expect(info.Constructor()).ToNot(BeNil())
	})

	When("the creation policy is native only", func() {
		var name string

		BeforeEach(func() {
			name = uniqueClassName("Hidden")
			registerCounter(name, WithCreationPolicy(CreationPolicyNativeOnly))
			Expect(e.ExposeClass(name)).To(Succeed())
		})

		It("rejects construction from script", func() {
			_, err := e.RunString(ctx, "new "+name+"(1)")
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("Illegal constructor"))
		})

		It("allows construction from Go", func() {
			obj, err := e.NewObject(name, 4)
			Expect(err).To(BeNil())
			Expect(obj.(*counter).value).To(Equal(int64(4)))

			Expect(e.Runtime().Set("hidden", ValueOf(obj))).To(Succeed())
			Expect(run(e, "hidden.inc()").Export()).To(Equal(int64(5)))

			_, err = e.RunString(ctx, "new "+name+"(1)")
			Expect(err).ToNot(BeNil())
		})
	})

	When("methods are called on the wrong receiver", func() {
		var first, second string

		BeforeEach(func() {
			first = uniqueClassName("First")
			second = uniqueClassName("Second")
			registerCounter(first)
			registerCounter(second)
			Expect(e.ExposeClass(first)).To(Succeed())
			Expect(e.ExposeClass(second)).To(Succeed())
		})

		It("throws for plain objects", func() {
			_, err := e.RunString(ctx, first+".prototype.inc.call({})")
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("Illegal invocation"))
		})

		It("throws for instances of another class", func() {
			_, err := e.RunString(ctx, first+".prototype.inc.call(new "+second+"(1))")
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("Illegal invocation"))
		})

		It("throws for disposed objects", func() {
			value := run(e, "var c = new "+first+"(1); c")
			obj, ok := Unwrap[*counter](value)
			Expect(ok).To(BeTrue())

			obj.Dispose()
			Expect(obj.IsDisposed()).To(BeTrue())

			_, err := e.RunString(ctx, "c.inc()")
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("Illegal invocation"))

			_, ok = Unwrap[*counter](value)
			Expect(ok).To(BeFalse())
		})
	})

	It("inherits from a parent class", func() {
		parent := uniqueClassName("Shape")
		child := uniqueClassName("Square")

		RegisterClass(parent, func(info *ClassInfo) {
			info.RegisterMethod("kind", func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value {
				return info.Engine().Runtime().ToValue(obj.ClassInfo().CanonicalName())
			})
		}, createCounter, 0)
		RegisterClass(child, func(info *ClassInfo) {
			info.Inherit(parent)
			info.RegisterMethod("area", func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value {
				return info.Engine().Runtime().ToValue(4)
			})
		}, createCounter, 0)
		Expect(e.ExposeClass(parent)).To(Succeed())
		Expect(e.ExposeClass(child)).To(Succeed())

		value := run(e, `
			var s = new `+child+`();
			[s instanceof `+child+`, s instanceof `+parent+`, s.kind(), s.area(), Object.getPrototypeOf(`+child+`) === `+parent+`];
		`)
		Expect(value.Export()).To(Equal([]any{true, true, child, int64(4), true}))

		_, err := e.RunString(ctx, child+".prototype.area.call(new "+parent+"())")
		Expect(err).ToNot(BeNil())

		parentInfo, err := e.ClassInfo(parent)
		Expect(err).To(BeNil())
		childInfo, err := e.ClassInfo(child)
		Expect(err).To(BeNil())
		Expect(parentInfo.HasInstance(run(e, "s"))).To(BeTrue())
		Expect(childInfo.HasInstance(run(e, "new "+parent+"()"))).To(BeFalse())
		Expect(childInfo.FunctionTemplate().Parent()).To(BeIdenticalTo(parentInfo.FunctionTemplate()))
	})

	It("faults on inheritance cycles", func() {
		self := uniqueClassName("Self")
		RegisterClass(self, func(info *ClassInfo) {
			info.Inherit(self)
		}, createCounter, 0)

		first := uniqueClassName("Chicken")
		second := uniqueClassName("Egg")
		RegisterClass(first, func(info *ClassInfo) {
			info.Inherit(second)
		}, createCounter, 0)
		RegisterClass(second, func(info *ClassInfo) {
			info.Inherit(first)
		}, createCounter, 0)

		cycle := &Error{Phase: PhaseInitialization, Kind: KindInvalidInput}
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)

			Expect(func() { _, _ = e.ClassInfo(self) }).To(PanicWith(MatchError(cycle)))
			Expect(func() { _, _ = e.ClassInfo(first) }).To(PanicWith(MatchError(cycle)))
			Expect(func() { _, _ = e.ClassInfo(second) }).To(PanicWith(MatchError(cycle)))
		}()
		Eventually(done, 2*time.Second).Should(BeClosed())

		for _, name := range []string{self, first, second} {
			container, _ := LookupClass(name)
			Expect(container.Engines()).To(BeEmpty())
		}
	})

	It("rejects calling the constructor without new", func() {
		name := uniqueClassName("Counter")
		registerCounter(name)
		Expect(e.ExposeClass(name)).To(Succeed())

		_, err := e.RunString(ctx, name+".call(globalThis, 3)")
		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(ContainSubstring("cannot be invoked without 'new'"))
		_, ok := Unwrap[*counter](e.Runtime().GlobalObject())
		Expect(ok).To(BeFalse())

		value := run(e, `
			var c = new `+name+`(1);
			var message;
			try { `+name+`.call(c, 9) } catch (err) { message = err.message }
			[c.value, message];
		`)
		Expect(value.Export()).To(Equal([]any{int64(1), "Class constructor " + name + " cannot be invoked without 'new'"}))

		_, err = e.RunString(ctx, name+"(2)")
		Expect(err).ToNot(BeNil())
	})

	It("throws a TypeError when a typed callback gets another native type", func() {
		name := uniqueClassName("Typed")
		RegisterClass(name, func(info *ClassInfo) {
			info.RegisterMethod("value", Method(func(c *counter, methodName string, call goja.FunctionCall) goja.Value {
				return info.Engine().Runtime().ToValue(c.value)
			}))
		}, func(info *ClassInfo, jsObject *goja.Object) NativeObject {
			return &foreign{}
		}, 0)
		Expect(e.ExposeClass(name)).To(Succeed())

		_, err := e.RunString(ctx, "new "+name+"().value()")
		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(ContainSubstring("incompatible receiver"))
	})
})

type foreign struct {
	ObjectBase
}
